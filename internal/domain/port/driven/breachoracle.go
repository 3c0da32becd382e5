package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// ErrOracleUnavailable indicates the breach database could not be consulted.
// It means "could not check" and must never be read as a clean result.
var ErrOracleUnavailable = errors.New("breach oracle unavailable")

// BreachOracle checks a plaintext password against a breach database.
type BreachOracle interface {
	// CheckBreached returns BreachStatusBreached or BreachStatusClean.
	// Transport failures and non-200 responses wrap ErrOracleUnavailable.
	CheckBreached(ctx context.Context, password string) (model.BreachStatus, error)
}
