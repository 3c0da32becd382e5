// Package httphandler is the JSON REST driving adapter over the vault use cases.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/credvault/internal/application"
	"github.com/ericfisherdev/credvault/internal/crypto"
	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// VaultUseCases is the credential management surface the handler drives.
type VaultUseCases interface {
	Add(ctx context.Context, in model.CredentialInput) (*model.Credential, error)
	Get(ctx context.Context, id int64) (*model.Credential, error)
	Reveal(ctx context.Context, id int64) (string, error)
	Edit(ctx context.Context, id int64, edit model.CredentialEdit) (*model.Credential, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, userID int64) ([]model.Credential, error)
}

// BreachUseCases runs on-demand breach checks.
type BreachUseCases interface {
	CheckCredential(ctx context.Context, id int64) (model.BreachStatus, error)
	CheckAll(ctx context.Context, userID int64) (model.BreachSummary, error)
}

// ImportUseCases imports browser logins into a user's vault.
type ImportUseCases interface {
	Import(ctx context.Context, browser model.Browser, userID int64) (*model.ImportSummary, error)
	ImportAll(ctx context.Context, userID int64) ([]*model.ImportSummary, error)
}

// Compile-time checks that the application services satisfy the handler's needs.
var (
	_ VaultUseCases  = (*application.VaultService)(nil)
	_ BreachUseCases = (*application.BreachService)(nil)
	_ ImportUseCases = (*application.ImportService)(nil)
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	vault  VaultUseCases
	breach BreachUseCases
	imp    ImportUseCases
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(vault VaultUseCases, breach BreachUseCases, imp ImportUseCases, logger *slog.Logger) *Handler {
	return &Handler{
		vault:  vault,
		breach: breach,
		imp:    imp,
		logger: logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/users/{userID}/credentials", h.ListCredentials)
	mux.HandleFunc("POST /api/v1/users/{userID}/credentials", h.AddCredential)
	mux.HandleFunc("POST /api/v1/users/{userID}/imports", h.Import)
	mux.HandleFunc("POST /api/v1/users/{userID}/breach-checks", h.CheckAll)
	mux.HandleFunc("GET /api/v1/credentials/{id}", h.GetCredential)
	mux.HandleFunc("PATCH /api/v1/credentials/{id}", h.EditCredential)
	mux.HandleFunc("DELETE /api/v1/credentials/{id}", h.DeleteCredential)
	mux.HandleFunc("POST /api/v1/credentials/{id}/reveal", h.RevealPassword)
	mux.HandleFunc("POST /api/v1/credentials/{id}/breach-check", h.CheckCredential)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery sits inside the access log so recovered panics are logged as 500s.
	return chain(mux, requestID, accessLog(logger), recoverPanics(logger), noStore)
}

// ListCredentials returns a user's credentials without passwords.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	creds, err := h.vault.List(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "list credentials")
		return
	}

	resp := make([]CredentialResponse, 0, len(creds))
	for _, c := range creds {
		resp = append(resp, toCredentialResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddCredential stores a manually entered credential.
func (h *Handler) AddCredential(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var req AddCredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cred, err := h.vault.Add(r.Context(), model.CredentialInput{
		UserID:      userID,
		OriginURL:   req.OriginURL,
		SignonRealm: req.SignonRealm,
		Username:    req.Username,
		Password:    req.Password,
	})
	if err != nil {
		h.writeServiceError(w, err, "add credential")
		return
	}

	writeJSON(w, http.StatusCreated, toCredentialResponse(*cred))
}

// GetCredential returns one credential without its password.
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	cred, err := h.vault.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get credential")
		return
	}

	writeJSON(w, http.StatusOK, toCredentialResponse(*cred))
}

// EditCredential applies a partial update.
func (h *Handler) EditCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req EditCredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cred, err := h.vault.Edit(r.Context(), id, model.CredentialEdit{
		OriginURL: req.OriginURL,
		Username:  req.Username,
		Password:  req.Password,
	})
	if err != nil {
		h.writeServiceError(w, err, "edit credential")
		return
	}

	writeJSON(w, http.StatusOK, toCredentialResponse(*cred))
}

// DeleteCredential removes a credential.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.vault.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "delete credential")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RevealPassword returns the decrypted password.
func (h *Handler) RevealPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	password, err := h.vault.Reveal(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "reveal password")
		return
	}

	writeJSON(w, http.StatusOK, RevealResponse{ID: id, Password: password})
}

// CheckCredential runs a breach check for one credential.
func (h *Handler) CheckCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	status, err := h.breach.CheckCredential(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "check credential")
		return
	}

	writeJSON(w, http.StatusOK, BreachCheckResponse{ID: id, BreachStatus: string(status)})
}

// CheckAll runs a breach check over every credential a user owns.
func (h *Handler) CheckAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	summary, err := h.breach.CheckAll(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "check all credentials")
		return
	}

	writeJSON(w, http.StatusOK, toBreachSummaryResponse(summary))
}

// Import merges a browser's saved logins into the user's vault. The "all"
// browser imports every configured browser and reports per-browser failures
// alongside the summaries that succeeded.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var req ImportRequest
	if !decodeBody(w, r, &req) {
		return
	}

	browser, err := model.ParseBrowser(req.Browser)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if browser != model.BrowserAll {
		summary, err := h.imp.Import(r.Context(), browser, userID)
		if err != nil {
			h.writeServiceError(w, err, "import")
			return
		}
		writeJSON(w, http.StatusOK, ImportResponse{
			Summaries: []ImportSummaryResponse{toImportSummaryResponse(summary)},
			Errors:    []string{},
		})
		return
	}

	summaries, err := h.imp.ImportAll(r.Context(), userID)
	if err != nil && len(summaries) == 0 {
		h.writeServiceError(w, err, "import all")
		return
	}

	resp := ImportResponse{
		Summaries: make([]ImportSummaryResponse, 0, len(summaries)),
		Errors:    []string{},
	}
	for _, s := range summaries {
		resp.Summaries = append(resp.Summaries, toImportSummaryResponse(s))
	}
	if err != nil {
		resp.Errors = append(resp.Errors, err.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeServiceError maps use-case errors onto HTTP statuses. Unexpected
// errors are logged and reported as a bare 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, application.ErrInvalidCredential):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, driven.ErrCredentialNotFound):
		writeError(w, http.StatusNotFound, "credential not found")
	case errors.Is(err, driven.ErrDuplicateCredential):
		writeError(w, http.StatusConflict, "credential already exists")
	case errors.Is(err, crypto.ErrMalformedBlob), errors.Is(err, crypto.ErrAuthenticationFailed):
		writeError(w, http.StatusUnprocessableEntity, "unable to decrypt")
	case errors.Is(err, driven.ErrOracleUnavailable):
		writeError(w, http.StatusServiceUnavailable, "breach check unavailable")
	case errors.Is(err, driven.ErrKeySourceUnavailable),
		errors.Is(err, driven.ErrKeyUnwrapFailed),
		errors.Is(err, driven.ErrKeyFormatInvalid):
		h.logger.Warn("key acquisition failed", "op", op, "error", err)
		writeError(w, http.StatusServiceUnavailable, "encryption key unavailable")
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathID parses a positive integer path parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// decodeBody decodes a bounded JSON body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
