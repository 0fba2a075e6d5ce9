// Package mmerr defines the engine's error taxonomy: a small sum type over
// the startup-fatal failure kinds the supervisor must distinguish between.
package mmerr

import "fmt"

// Kind classifies a MarketMakerError.
type Kind string

const (
	KindConfigLoad           Kind = "config_load_error"
	KindKeypairFileOpen      Kind = "keypair_file_open_error"
	KindKeypairRead          Kind = "keypair_read_error"
	KindKeypairLoad          Kind = "keypair_load_error"
	KindRPCClientInit        Kind = "rpc_client_init_error"
	KindFetchingGroup        Kind = "error_fetching_group"
	KindFetchingMarket       Kind = "error_fetching_market"
	KindCreatingAccount      Kind = "error_creating_account"
	KindCreatingOpenOrders   Kind = "error_creating_open_orders"
	KindDepositing           Kind = "error_depositing"
	KindInitServices         Kind = "init_services_error"
	KindShutdown             Kind = "shutdown_error"
)

// MarketMakerError wraps an underlying error with a Kind, so callers can
// branch on failure category without string-matching.
type MarketMakerError struct {
	Kind Kind
	Err  error
}

func New(kind Kind, err error) *MarketMakerError {
	return &MarketMakerError{Kind: kind, Err: err}
}

func (e *MarketMakerError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *MarketMakerError) Unwrap() error {
	return e.Err
}

// Is supports errors.Is comparison by Kind: errors.Is(err, mmerr.New(KindX, nil)).
func (e *MarketMakerError) Is(target error) bool {
	other, ok := target.(*MarketMakerError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
