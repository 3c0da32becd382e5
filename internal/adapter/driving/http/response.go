package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// CredentialResponse is the JSON representation of a stored credential.
// The password is never included; use the reveal endpoint.
type CredentialResponse struct {
	ID                 int64  `json:"id"`
	UserID             int64  `json:"user_id"`
	OriginURL          string `json:"origin_url"`
	SignonRealm        string `json:"signon_realm"`
	Icon               string `json:"icon,omitempty"`
	Username           string `json:"username"`
	Browser            string `json:"browser"`
	BrowserName        string `json:"browser_name"`
	BreachStatus       string `json:"breach_status"`
	CreatedAt          string `json:"created_at,omitempty"`
	LastUsedAt         string `json:"last_used_at,omitempty"`
	PasswordModifiedAt string `json:"password_modified_at,omitempty"`
	BreachCheckedAt    string `json:"breach_checked_at,omitempty"`
}

// AddCredentialRequest is the JSON body for the add credential endpoint.
type AddCredentialRequest struct {
	OriginURL   string `json:"origin_url"`
	SignonRealm string `json:"signon_realm"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

// EditCredentialRequest is the JSON body for the edit endpoint. Omitted
// fields are left unchanged.
type EditCredentialRequest struct {
	OriginURL *string `json:"origin_url"`
	Username  *string `json:"username"`
	Password  *string `json:"password"`
}

// RevealResponse carries a decrypted password.
type RevealResponse struct {
	ID       int64  `json:"id"`
	Password string `json:"password"`
}

// BreachCheckResponse is the result of checking one credential.
type BreachCheckResponse struct {
	ID           int64  `json:"id"`
	BreachStatus string `json:"breach_status"`
}

// BreachSummaryResponse is the result of checking every credential a user owns.
type BreachSummaryResponse struct {
	Checked       int `json:"checked"`
	Breached      int `json:"breached"`
	Clean         int `json:"clean"`
	Unavailable   int `json:"unavailable"`
	Undecryptable int `json:"undecryptable"`
}

// ImportRequest is the JSON body for the import endpoint.
type ImportRequest struct {
	Browser string `json:"browser"`
}

// ImportSummaryResponse reports one browser's import run.
type ImportSummaryResponse struct {
	RunID    string           `json:"run_id"`
	Browser  string           `json:"browser"`
	Outcome  string           `json:"outcome"`
	Read     int              `json:"read"`
	Inserted int              `json:"inserted"`
	Skipped  int              `json:"skipped"`
	Failed   []model.RowError `json:"failed"`
}

// ImportResponse wraps the summaries of an import request.
type ImportResponse struct {
	Summaries []ImportSummaryResponse `json:"summaries"`
	Errors    []string                `json:"errors"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toCredentialResponse converts a domain Credential to its JSON response representation.
func toCredentialResponse(c model.Credential) CredentialResponse {
	return CredentialResponse{
		ID:                 c.ID,
		UserID:             c.UserID,
		OriginURL:          c.OriginURL,
		SignonRealm:        c.SignonRealm,
		Icon:               c.Icon,
		Username:           c.Username,
		Browser:            string(c.Browser),
		BrowserName:        c.Browser.DisplayName(),
		BreachStatus:       string(c.Breach),
		CreatedAt:          formatTime(c.CreatedAt),
		LastUsedAt:         formatTime(c.LastUsedAt),
		PasswordModifiedAt: formatTime(c.PasswordModifiedAt),
		BreachCheckedAt:    formatTime(c.BreachCheckedAt),
	}
}

func toBreachSummaryResponse(s model.BreachSummary) BreachSummaryResponse {
	return BreachSummaryResponse{
		Checked:       s.Checked,
		Breached:      s.Breached,
		Clean:         s.Clean,
		Unavailable:   s.Unavailable,
		Undecryptable: s.Undecryptable,
	}
}

func toImportSummaryResponse(s *model.ImportSummary) ImportSummaryResponse {
	failed := s.Failed
	if failed == nil {
		failed = []model.RowError{}
	}
	return ImportSummaryResponse{
		RunID:    s.RunID,
		Browser:  string(s.Browser),
		Outcome:  string(s.Outcome),
		Read:     s.Read,
		Inserted: s.Inserted,
		Skipped:  s.Skipped,
		Failed:   failed,
	}
}

// formatTime renders t as RFC 3339, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
