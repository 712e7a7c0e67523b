package quickbooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type memStore struct {
	mu    sync.Mutex
	creds Credentials
	saves int
}

func (s *memStore) Load(ctx context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, nil
}

func (s *memStore) Save(ctx context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	s.saves++
	return nil
}

func newTestClient(t *testing.T, apiURL string, tokenURL string) (*Client, *memStore) {
	t.Helper()
	t.Setenv("QBO_API_BASE_URL", apiURL)
	t.Setenv("QBO_TOKEN_URL", tokenURL)
	t.Setenv("QBO_CLIENT_ID", "test-client")
	t.Setenv("QBO_CLIENT_SECRET", "test-secret")
	// Keep the limiter out of the way.
	t.Setenv("QBO_RATE_LIMIT_PER_MIN", "600000")

	store := &memStore{creds: Credentials{
		AccessToken:  "valid-token",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(time.Hour),
		RealmId:      "realm-1",
	}}
	client, err := NewClient(context.Background(), store)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, store
}

func TestNewClient_NotConnectedWithoutCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), &memStore{})
	if err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestListInvoices_ParsesQueryResponse(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"QueryResponse": map[string]interface{}{
				"Invoice": []map[string]interface{}{
					{"Id": "101", "CustomerRef": map[string]string{"value": "1", "name": "Acme Corp"},
						"TotalAmt": 500.25, "Balance": 250, "TxnDate": "2026-01-15", "DueDate": "2026-02-15"},
				},
			},
		})
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, srv.URL+"/token")

	invoices, err := client.ListInvoices(context.Background())
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(invoices) != 1 {
		t.Fatalf("got %d invoices", len(invoices))
	}
	if invoices[0].Id != "101" || invoices[0].CustomerRef.Name != "Acme Corp" {
		t.Fatalf("unexpected invoice: %+v", invoices[0])
	}
	if invoices[0].TotalAmt.String() != "500.25" {
		t.Fatalf("amount = %s", invoices[0].TotalAmt.String())
	}
	if gotAuth != "Bearer valid-token" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
}

func TestQuery_RefreshesOnUnauthorized(t *testing.T) {
	var apiCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "fresh-token",
			"refresh_token": "fresh-refresh",
			"token_type":    "bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		apiCalls++
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"QueryResponse": map[string]interface{}{
				"Bill": []map[string]interface{}{
					{"Id": "55", "VendorRef": map[string]string{"value": "9", "name": "Western Supply"},
						"TotalAmt": 100, "Balance": 100},
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, store := newTestClient(t, srv.URL, srv.URL+"/token")

	bills, err := client.ListBills(context.Background())
	if err != nil {
		t.Fatalf("ListBills: %v", err)
	}
	if len(bills) != 1 || bills[0].VendorRef.Name != "Western Supply" {
		t.Fatalf("unexpected bills: %+v", bills)
	}
	if apiCalls != 2 {
		t.Fatalf("expected 401-then-retry (2 calls), got %d", apiCalls)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.saves == 0 || store.creds.AccessToken != "fresh-token" {
		t.Fatalf("refreshed token not persisted: %+v", store.creds)
	}
	if store.creds.RealmId != "realm-1" {
		t.Fatalf("realm id lost on save: %q", store.creds.RealmId)
	}
}
