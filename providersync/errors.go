package providersync

import (
	"fmt"

	"bitbucket.org/mmdatafocus/finsync_backend/models"
)

// AuthExchangeError is a failed call to a provider's token endpoint (code
// exchange or refresh). Fatal to the action that triggered it; never retried.
type AuthExchangeError struct {
	Provider   models.Provider
	Op         string // "exchange", "refresh" or "connections"
	StatusCode int
	Detail     string
}

func (e *AuthExchangeError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s oauth %s failed with status %d", e.Provider, e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s oauth %s failed: %s", e.Provider, e.Op, e.Detail)
}

// TokenInvalidError means stored credentials cannot be auto-repaired; the
// user has to reconnect the provider. Checked without any network call.
type TokenInvalidError struct {
	Reason string
}

func (e *TokenInvalidError) Error() string { return e.Reason }

// ProviderFetchError is any non-2xx response or undecodable payload during
// entity retrieval. One of these aborts the whole sync for the connection.
type ProviderFetchError struct {
	Endpoint   string
	StatusCode int
	Detail     string
}

func (e *ProviderFetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider api error %d: GET %s", e.StatusCode, e.Endpoint)
	}
	return fmt.Sprintf("provider api error: GET %s: %s", e.Endpoint, e.Detail)
}
