package driven

import (
	"context"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// LoginSource reads saved logins from a browser's local credential store.
type LoginSource interface {
	// ReadLogins reads every row from the store of the given browser.
	// It returns nil, nil when no store is configured for that browser,
	// which callers report as "nothing to import" rather than a failure.
	ReadLogins(ctx context.Context, browser model.Browser) (*model.ImportBatch, error)
}
