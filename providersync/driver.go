package providersync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/finsync_backend/config"
	"bitbucket.org/mmdatafocus/finsync_backend/models"
	"github.com/shopspring/decimal"
)

// Driver is one provider's OAuth client, fetcher and mapper behind a single
// contract. Implementations are selected by the models.Provider tag; call
// sites never branch on provider strings.
type Driver interface {
	Provider() models.Provider
	BuildAuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (TokenResult, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (TokenResult, error)
	FetchDataset(ctx context.Context, conn *models.Connection) (*Dataset, error)
}

// Pagination safety cap for page-number providers. A provider that keeps
// returning non-empty pages stops being trusted after this many.
const maxPageFetches = 50

const insertBatchSize = 100

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func envOrDefault(key string, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// tokenResponse covers both providers' token-endpoint payloads; each uses a
// different field for the refresh-token lifetime.
type tokenResponse struct {
	AccessToken            string `json:"access_token"`
	RefreshToken           string `json:"refresh_token"`
	ExpiresIn              int64  `json:"expires_in"`
	RefreshTokenExpiresIn  int64  `json:"refresh_token_expires_in"`
	XRefreshTokenExpiresIn int64  `json:"x_refresh_token_expires_in"`
}

// requestToken performs one confidential-client form POST against a token
// endpoint. Every failure mode surfaces as *AuthExchangeError.
func requestToken(ctx context.Context, httpc *http.Client, endpoint string, opts config.OAuthProviderOptions, form url.Values, provider models.Provider, op string) (tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, &AuthExchangeError{Provider: provider, Op: op, Detail: err.Error()}
	}
	req.SetBasicAuth(opts.ClientId, opts.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := httpc.Do(req)
	if err != nil {
		return tokenResponse{}, &AuthExchangeError{Provider: provider, Op: op, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return tokenResponse{}, &AuthExchangeError{Provider: provider, Op: op, StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(body))}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return tokenResponse{}, &AuthExchangeError{Provider: provider, Op: op, Detail: err.Error()}
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return tokenResponse{}, &AuthExchangeError{Provider: provider, Op: op, Detail: "token response missing access_token or refresh_token"}
	}
	return tok, nil
}

func tokenResultFromResponse(tok tokenResponse) TokenResult {
	now := time.Now().UTC()
	result := TokenResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if tok.ExpiresIn > 0 {
		t := now.Add(time.Duration(tok.ExpiresIn) * time.Second)
		result.AccessTokenExpiresAt = &t
	}
	refreshIn := tok.RefreshTokenExpiresIn
	if refreshIn == 0 {
		refreshIn = tok.XRefreshTokenExpiresIn
	}
	if refreshIn > 0 {
		t := now.Add(time.Duration(refreshIn) * time.Second)
		result.RefreshTokenExpiresAt = &t
	}
	return result
}

// getJSON issues a GET with a per-request header set (no shared client
// state) and decodes the body. Failures surface as *ProviderFetchError.
func getJSON(ctx context.Context, httpc *http.Client, endpoint string, headers map[string]string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &ProviderFetchError{Endpoint: endpoint, Detail: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return &ProviderFetchError{Endpoint: endpoint, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderFetchError{Endpoint: endpoint, StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return &ProviderFetchError{Endpoint: endpoint, Detail: err.Error()}
	}
	return nil
}

func decimalFromNumber(num json.Number) decimal.Decimal {
	if num.String() == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(num.String()); err == nil {
		return d
	}
	return decimal.Zero
}

// fallbackDash implements the "missing optional field never fails a sync"
// contract for free-text columns.
func fallbackDash(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	return s
}

func fallback(s string, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// parseDate accepts the date shapes both providers emit: RFC3339, bare
// date/datetime strings, and Xero's legacy "/Date(1228752000000+0000)/".
func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	if strings.HasPrefix(value, "/Date(") {
		inner := strings.TrimSuffix(strings.TrimPrefix(value, "/Date("), ")/")
		if idx := strings.IndexAny(inner, "+-"); idx > 0 {
			inner = inner[:idx]
		}
		if ms, err := strconv.ParseInt(inner, 10, 64); err == nil {
			t := time.UnixMilli(ms).UTC()
			return &t
		}
		return nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
