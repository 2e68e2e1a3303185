package providersync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/finsync_backend/models"
)

func TestQboBuildAuthorizeURL(t *testing.T) {
	driver := NewQboDriver(testOAuthOptions())
	raw := driver.BuildAuthorizeURL("state-7")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse authorize url: %v", err)
	}
	q := u.Query()
	if q.Get("scope") != "com.intuit.quickbooks.accounting" {
		t.Fatalf("scope = %q", q.Get("scope"))
	}
	if q.Get("state") != "state-7" {
		t.Fatalf("state = %q", q.Get("state"))
	}
}

func TestQboRefreshAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "rt-old" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-new","refresh_token":"rt-new","expires_in":3600,"x_refresh_token_expires_in":8726400}`))
	}))
	defer srv.Close()

	t.Setenv("QBO_TOKEN_ENDPOINT", srv.URL)

	driver := NewQboDriver(testOAuthOptions())
	result, err := driver.RefreshAccessToken(context.Background(), "rt-old")
	if err != nil {
		t.Fatalf("RefreshAccessToken: %v", err)
	}
	if result.AccessToken != "at-new" || result.RefreshToken != "rt-new" {
		t.Fatalf("tokens = %q/%q", result.AccessToken, result.RefreshToken)
	}
	if result.RefreshTokenExpiresAt == nil {
		t.Fatal("x_refresh_token_expires_in should set the refresh expiry")
	}
}

// qboQueryServer serves canned rows per entity and records every query
// statement it saw.
func qboQueryServer(t *testing.T, rows map[string][]string) (*httptest.Server, *[]string) {
	t.Helper()
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v3/company/realm-1/query") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		stmt := r.URL.Query().Get("query")
		queries = append(queries, stmt)

		entity := ""
		for name := range rows {
			if strings.Contains(stmt, "from "+name+" ") {
				entity = name
				break
			}
		}
		payload := "[]"
		if entity != "" && strings.Contains(stmt, "startposition 1 ") {
			payload = "[" + strings.Join(rows[entity], ",") + "]"
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"QueryResponse":{%q:%s}}`, entity, payload)
	}))
	return srv, &queries
}

func TestQboFetchDataset(t *testing.T) {
	srv, queries := qboQueryServer(t, map[string][]string{
		"Invoice": {
			`{"Id":"10","DocNumber":"1001","TotalAmt":500,"Balance":500,"DueDate":"2026-02-01","CustomerRef":{"value":"2","name":"Globex"}}`,
			`{"Id":"11","DocNumber":"1002","TotalAmt":75,"Balance":0,"CustomerRef":{"value":"3","name":"Initech"}}`,
		},
		"Customer": {
			`{"Id":"2","DisplayName":"Globex","PrimaryEmailAddr":{"Address":"ap@globex.test"},"PrimaryPhone":{"FreeFormNumber":"555-0100"}}`,
		},
		"Account": {
			`{"Id":"30","Name":"Checking","AccountType":"Bank","AcctNum":"1000"}`,
		},
		"Payment": {
			`{"Id":"40","TxnDate":"2026-01-20","TotalAmt":500,"CustomerRef":{"value":"2","name":"Globex"},"PaymentRefNum":"CHK-9"}`,
		},
		"Purchase": {
			`{"Id":"50","TxnDate":"2026-01-21","TotalAmt":60,"PaymentType":"Cash","EntityRef":{"value":"7","name":"Staples"},"AccountRef":{"value":"8","name":"Office Supplies"}}`,
		},
		"Bill": {
			`{"Id":"60","DocNumber":"B-3","TxnDate":"2026-01-22","TotalAmt":120,"VendorRef":{"value":"9","name":"Utility Co"}}`,
		},
	})
	defer srv.Close()

	t.Setenv("QBO_API_BASE_URL", srv.URL)

	driver := NewQboDriver(testOAuthOptions())
	conn := &models.Connection{
		Provider:    models.ProviderQBO,
		AccessToken: "at-1",
		RealmId:     "realm-1",
	}

	ds, err := driver.FetchDataset(context.Background(), conn)
	if err != nil {
		t.Fatalf("FetchDataset: %v", err)
	}

	// One query per entity: every first page came back short.
	if len(*queries) != 6 {
		t.Fatalf("got %d queries, want 6: %v", len(*queries), *queries)
	}
	for _, stmt := range *queries {
		if !strings.Contains(stmt, "orderby Metadata.LastUpdatedTime desc") {
			t.Fatalf("query missing deterministic order: %q", stmt)
		}
	}

	if len(ds.Invoices) != 2 {
		t.Fatalf("invoices = %+v", ds.Invoices)
	}
	if ds.Invoices[0].Status != "OPEN" || ds.Invoices[1].Status != "PAID" {
		t.Fatalf("statuses = %q/%q", ds.Invoices[0].Status, ds.Invoices[1].Status)
	}
	if len(ds.Customers) != 1 || ds.Customers[0].Phone != "555-0100" {
		t.Fatalf("customers = %+v", ds.Customers)
	}
	if len(ds.Accounts) != 1 || ds.Accounts[0].Type != "Bank" {
		t.Fatalf("accounts = %+v", ds.Accounts)
	}
	if len(ds.Payments) != 1 || ds.Payments[0].Reference != "CHK-9" {
		t.Fatalf("payments = %+v", ds.Payments)
	}
	// Purchases and bills form the expense union.
	if len(ds.Expenses) != 2 {
		t.Fatalf("expenses = %+v", ds.Expenses)
	}
	if ds.Expenses[0].Category != "Office Supplies" {
		t.Fatalf("purchase category = %q", ds.Expenses[0].Category)
	}
	if ds.Expenses[1].Description != "Bill B-3" {
		t.Fatalf("bill description = %q", ds.Expenses[1].Description)
	}
}

func TestQboFetchDatasetPaginatesUntilShortPage(t *testing.T) {
	fullPage := make([]string, qboPageSize)
	for i := range fullPage {
		fullPage[i] = fmt.Sprintf(`{"Id":"inv-%d","TotalAmt":10,"Balance":1}`, i)
	}
	var starts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stmt := r.URL.Query().Get("query")
		if !strings.Contains(stmt, "from Invoice ") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"QueryResponse":{}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(stmt, "startposition 1 ") {
			starts = append(starts, "1")
			fmt.Fprintf(w, `{"QueryResponse":{"Invoice":[%s]}}`, strings.Join(fullPage, ","))
			return
		}
		starts = append(starts, "next")
		_, _ = w.Write([]byte(`{"QueryResponse":{"Invoice":[]}}`))
	}))
	defer srv.Close()

	t.Setenv("QBO_API_BASE_URL", srv.URL)

	driver := NewQboDriver(testOAuthOptions())
	conn := &models.Connection{Provider: models.ProviderQBO, AccessToken: "at", RealmId: "realm-1"}

	ds, err := driver.FetchDataset(context.Background(), conn)
	if err != nil {
		t.Fatalf("FetchDataset: %v", err)
	}
	if len(starts) != 2 {
		t.Fatalf("invoice fetches = %v, want a full page then a short one", starts)
	}
	if len(ds.Invoices) != qboPageSize {
		t.Fatalf("got %d invoices, want %d", len(ds.Invoices), qboPageSize)
	}
}
