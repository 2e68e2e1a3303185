package providersync

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"bitbucket.org/mmdatafocus/finsync_backend/config"
	"bitbucket.org/mmdatafocus/finsync_backend/models"
)

const (
	qboAuthEndpoint         = "https://appcenter.intuit.com/connect/oauth2"
	qboDefaultTokenEndpoint = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	qboDefaultAPIBaseURL    = "https://quickbooks.api.intuit.com"
	qboScopes               = "com.intuit.quickbooks.accounting"

	qboPageSize = 100
)

type qboDriver struct {
	opts          config.OAuthProviderOptions
	httpc         *http.Client
	tokenEndpoint string
	apiBaseURL    string
}

func NewQboDriver(opts config.OAuthProviderOptions) Driver {
	return &qboDriver{
		opts:          opts,
		httpc:         newHTTPClient(),
		tokenEndpoint: envOrDefault("QBO_TOKEN_ENDPOINT", qboDefaultTokenEndpoint),
		apiBaseURL:    envOrDefault("QBO_API_BASE_URL", qboDefaultAPIBaseURL),
	}
}

func (d *qboDriver) Provider() models.Provider {
	return models.ProviderQBO
}

func (d *qboDriver) BuildAuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", d.opts.ClientId)
	q.Set("redirect_uri", d.opts.RedirectUri)
	q.Set("scope", qboScopes)
	q.Set("state", state)
	return qboAuthEndpoint + "?" + q.Encode()
}

// ExchangeCode trades the authorization code for tokens. The realm id does
// not come back in the token response; Intuit passes it in the callback
// query string, so the handler fills it in on the connection row.
func (d *qboDriver) ExchangeCode(ctx context.Context, code string) (TokenResult, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", d.opts.RedirectUri)

	resp, err := requestToken(ctx, d.httpc, d.tokenEndpoint, d.opts, form, models.ProviderQBO, "exchange")
	if err != nil {
		return TokenResult{}, err
	}
	return tokenResultFromResponse(resp), nil
}

func (d *qboDriver) RefreshAccessToken(ctx context.Context, refreshToken string) (TokenResult, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	resp, err := requestToken(ctx, d.httpc, d.tokenEndpoint, d.opts, form, models.ProviderQBO, "refresh")
	if err != nil {
		return TokenResult{}, err
	}
	return tokenResultFromResponse(resp), nil
}

// query runs one page of a QBO SQL-ish query against the company endpoint.
// startPosition is 1-based.
func (d *qboDriver) query(ctx context.Context, conn *models.Connection, entity string, startPosition int, dest interface{}) error {
	stmt := fmt.Sprintf("select * from %s orderby Metadata.LastUpdatedTime desc startposition %d maxresults %d",
		entity, startPosition, qboPageSize)
	endpoint := fmt.Sprintf("%s/v3/company/%s/query?query=%s&minorversion=65",
		d.apiBaseURL, url.PathEscape(conn.RealmId), url.QueryEscape(stmt))
	headers := map[string]string{
		"Authorization": "Bearer " + conn.AccessToken,
		"Accept":        "application/json",
	}
	return getJSON(ctx, d.httpc, endpoint, headers, dest)
}

func (d *qboDriver) FetchDataset(ctx context.Context, conn *models.Connection) (*Dataset, error) {
	ds := &Dataset{}

	for start := 1; start <= maxPageFetches*qboPageSize; start += qboPageSize {
		var page struct {
			QueryResponse struct {
				Invoice []qboInvoice `json:"Invoice"`
			} `json:"QueryResponse"`
		}
		if err := d.query(ctx, conn, "Invoice", start, &page); err != nil {
			return nil, err
		}
		for _, item := range page.QueryResponse.Invoice {
			if inv := mapQboInvoice(item); inv != nil {
				ds.Invoices = append(ds.Invoices, *inv)
			}
		}
		if len(page.QueryResponse.Invoice) < qboPageSize {
			break
		}
	}

	for start := 1; start <= maxPageFetches*qboPageSize; start += qboPageSize {
		var page struct {
			QueryResponse struct {
				Customer []qboCustomer `json:"Customer"`
			} `json:"QueryResponse"`
		}
		if err := d.query(ctx, conn, "Customer", start, &page); err != nil {
			return nil, err
		}
		for _, item := range page.QueryResponse.Customer {
			if cust := mapQboCustomer(item); cust != nil {
				ds.Customers = append(ds.Customers, *cust)
			}
		}
		if len(page.QueryResponse.Customer) < qboPageSize {
			break
		}
	}

	for start := 1; start <= maxPageFetches*qboPageSize; start += qboPageSize {
		var page struct {
			QueryResponse struct {
				Account []qboAccount `json:"Account"`
			} `json:"QueryResponse"`
		}
		if err := d.query(ctx, conn, "Account", start, &page); err != nil {
			return nil, err
		}
		for _, item := range page.QueryResponse.Account {
			if acc := mapQboAccount(item); acc != nil {
				ds.Accounts = append(ds.Accounts, *acc)
			}
		}
		if len(page.QueryResponse.Account) < qboPageSize {
			break
		}
	}

	for start := 1; start <= maxPageFetches*qboPageSize; start += qboPageSize {
		var page struct {
			QueryResponse struct {
				Payment []qboPayment `json:"Payment"`
			} `json:"QueryResponse"`
		}
		if err := d.query(ctx, conn, "Payment", start, &page); err != nil {
			return nil, err
		}
		for _, item := range page.QueryResponse.Payment {
			if pay := mapQboPayment(item); pay != nil {
				ds.Payments = append(ds.Payments, *pay)
			}
		}
		if len(page.QueryResponse.Payment) < qboPageSize {
			break
		}
	}

	// Expenses union two entities: cash purchases and vendor bills.
	for start := 1; start <= maxPageFetches*qboPageSize; start += qboPageSize {
		var page struct {
			QueryResponse struct {
				Purchase []qboPurchase `json:"Purchase"`
			} `json:"QueryResponse"`
		}
		if err := d.query(ctx, conn, "Purchase", start, &page); err != nil {
			return nil, err
		}
		for _, item := range page.QueryResponse.Purchase {
			if exp := mapQboPurchase(item); exp != nil {
				ds.Expenses = append(ds.Expenses, *exp)
			}
		}
		if len(page.QueryResponse.Purchase) < qboPageSize {
			break
		}
	}

	for start := 1; start <= maxPageFetches*qboPageSize; start += qboPageSize {
		var page struct {
			QueryResponse struct {
				Bill []qboBill `json:"Bill"`
			} `json:"QueryResponse"`
		}
		if err := d.query(ctx, conn, "Bill", start, &page); err != nil {
			return nil, err
		}
		for _, item := range page.QueryResponse.Bill {
			if exp := mapQboBill(item); exp != nil {
				ds.Expenses = append(ds.Expenses, *exp)
			}
		}
		if len(page.QueryResponse.Bill) < qboPageSize {
			break
		}
	}

	return ds, nil
}
