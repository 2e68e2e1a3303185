package providersync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/finsync_backend/config"
	"bitbucket.org/mmdatafocus/finsync_backend/models"
)

const (
	xeroAuthEndpoint               = "https://login.xero.com/identity/connect/authorize"
	xeroDefaultTokenEndpoint       = "https://identity.xero.com/connect/token"
	xeroDefaultConnectionsEndpoint = "https://api.xero.com/connections"
	xeroDefaultAPIBaseURL          = "https://api.xero.com/api.xro/2.0"

	xeroScopes = "offline_access accounting.transactions accounting.contacts accounting.settings"
)

type xeroDriver struct {
	opts                config.OAuthProviderOptions
	authEndpoint        string
	tokenEndpoint       string
	connectionsEndpoint string
	apiBaseURL          string
	http                *http.Client
}

// NewXeroDriver builds the Xero implementation. Endpoints honor env
// overrides so tests can point the driver at a local server.
func NewXeroDriver(opts config.OAuthProviderOptions) Driver {
	return &xeroDriver{
		opts:                opts,
		authEndpoint:        envOrDefault("XERO_AUTH_ENDPOINT", xeroAuthEndpoint),
		tokenEndpoint:       envOrDefault("XERO_TOKEN_ENDPOINT", xeroDefaultTokenEndpoint),
		connectionsEndpoint: envOrDefault("XERO_CONNECTIONS_ENDPOINT", xeroDefaultConnectionsEndpoint),
		apiBaseURL:          strings.TrimRight(envOrDefault("XERO_API_BASE_URL", xeroDefaultAPIBaseURL), "/"),
		http:                newHTTPClient(),
	}
}

func (d *xeroDriver) Provider() models.Provider { return models.ProviderXero }

func (d *xeroDriver) BuildAuthorizeURL(state string) string {
	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", d.opts.ClientId)
	query.Set("redirect_uri", d.opts.RedirectUri)
	query.Set("scope", xeroScopes)
	query.Set("state", state)
	return d.authEndpoint + "?" + query.Encode()
}

func (d *xeroDriver) ExchangeCode(ctx context.Context, code string) (TokenResult, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", d.opts.RedirectUri)

	tok, err := requestToken(ctx, d.http, d.tokenEndpoint, d.opts, form, models.ProviderXero, "exchange")
	if err != nil {
		return TokenResult{}, err
	}
	result := tokenResultFromResponse(tok)

	tenantId, err := d.fetchTenantId(ctx, result.AccessToken)
	if err != nil {
		return TokenResult{}, err
	}
	result.TenantId = tenantId
	return result, nil
}

func (d *xeroDriver) RefreshAccessToken(ctx context.Context, refreshToken string) (TokenResult, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	tok, err := requestToken(ctx, d.http, d.tokenEndpoint, d.opts, form, models.ProviderXero, "refresh")
	if err != nil {
		return TokenResult{}, err
	}
	return tokenResultFromResponse(tok), nil
}

// fetchTenantId resolves the organisation behind a fresh token via the
// connections list. The first entry wins; multi-org users get their default.
func (d *xeroDriver) fetchTenantId(ctx context.Context, accessToken string) (string, error) {
	var entries []struct {
		TenantId string `json:"tenantId"`
	}
	err := getJSON(ctx, d.http, d.connectionsEndpoint, map[string]string{
		"Authorization": "Bearer " + accessToken,
	}, &entries)
	if err != nil {
		var fetchErr *ProviderFetchError
		if errors.As(err, &fetchErr) {
			return "", &AuthExchangeError{Provider: models.ProviderXero, Op: "connections", StatusCode: fetchErr.StatusCode, Detail: fetchErr.Detail}
		}
		return "", &AuthExchangeError{Provider: models.ProviderXero, Op: "connections", Detail: err.Error()}
	}
	if len(entries) == 0 || strings.TrimSpace(entries[0].TenantId) == "" {
		return "", &AuthExchangeError{Provider: models.ProviderXero, Op: "connections", Detail: "no tenant connection returned"}
	}
	return entries[0].TenantId, nil
}

func (d *xeroDriver) headers(conn *models.Connection) map[string]string {
	return map[string]string{
		"Authorization":  "Bearer " + conn.AccessToken,
		"xero-tenant-id": conn.TenantId,
	}
}

// get fetches one resource page. page <= 0 means the resource is not
// paginated (accounts).
func (d *xeroDriver) get(ctx context.Context, conn *models.Connection, resource string, page int, dest any) error {
	endpoint := fmt.Sprintf("%s/%s?order=%s", d.apiBaseURL, resource, url.QueryEscape("UpdatedDateUTC DESC"))
	if page > 0 {
		endpoint += "&page=" + strconv.Itoa(page)
	}
	return getJSON(ctx, d.http, endpoint, d.headers(conn), dest)
}

func (d *xeroDriver) FetchDataset(ctx context.Context, conn *models.Connection) (*Dataset, error) {
	ds := &Dataset{}

	// Invoices carry both sides of the ledger: ACCREC rows become canonical
	// invoices, ACCPAY rows join the expense union.
	for page := 1; page <= maxPageFetches; page++ {
		var resp struct {
			Invoices []xeroInvoice `json:"Invoices"`
		}
		if err := d.get(ctx, conn, "Invoices", page, &resp); err != nil {
			return nil, err
		}
		if len(resp.Invoices) == 0 {
			break
		}
		for _, item := range resp.Invoices {
			if strings.EqualFold(item.Type, "ACCPAY") {
				if exp := mapXeroBill(item); exp != nil {
					ds.Expenses = append(ds.Expenses, *exp)
				}
				continue
			}
			if inv := mapXeroInvoice(item); inv != nil {
				ds.Invoices = append(ds.Invoices, *inv)
			}
		}
	}

	for page := 1; page <= maxPageFetches; page++ {
		var resp struct {
			Contacts []xeroContact `json:"Contacts"`
		}
		if err := d.get(ctx, conn, "Contacts", page, &resp); err != nil {
			return nil, err
		}
		if len(resp.Contacts) == 0 {
			break
		}
		for _, item := range resp.Contacts {
			if cust := mapXeroContact(item); cust != nil {
				ds.Customers = append(ds.Customers, *cust)
			}
		}
	}

	// Accounts are not paginated by the provider.
	var accountsResp struct {
		Accounts []xeroAccount `json:"Accounts"`
	}
	if err := d.get(ctx, conn, "Accounts", 0, &accountsResp); err != nil {
		return nil, err
	}
	for _, item := range accountsResp.Accounts {
		if acc := mapXeroAccount(item); acc != nil {
			ds.Accounts = append(ds.Accounts, *acc)
		}
	}

	for page := 1; page <= maxPageFetches; page++ {
		var resp struct {
			Payments []xeroPayment `json:"Payments"`
		}
		if err := d.get(ctx, conn, "Payments", page, &resp); err != nil {
			return nil, err
		}
		if len(resp.Payments) == 0 {
			break
		}
		for _, item := range resp.Payments {
			if pay := mapXeroPayment(item); pay != nil {
				ds.Payments = append(ds.Payments, *pay)
			}
		}
	}

	for page := 1; page <= maxPageFetches; page++ {
		var resp struct {
			BankTransactions []xeroBankTransaction `json:"BankTransactions"`
		}
		if err := d.get(ctx, conn, "BankTransactions", page, &resp); err != nil {
			return nil, err
		}
		if len(resp.BankTransactions) == 0 {
			break
		}
		for _, item := range resp.BankTransactions {
			if exp := mapXeroBankTransaction(item); exp != nil {
				ds.Expenses = append(ds.Expenses, *exp)
			}
		}
	}

	return ds, nil
}
