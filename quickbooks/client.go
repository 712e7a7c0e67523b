package quickbooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrNotConnected means no credentials are stored; the user must reconnect.
	ErrNotConnected = errors.New("quickbooks is not connected")
	// ErrAuthExpired means the refresh token was rejected; the user must reconnect.
	ErrAuthExpired = errors.New("quickbooks credentials expired; reconnect required")
)

const defaultPageSize = 500

type Client struct {
	baseURL string
	realmId string
	conf    *oauth2.Config
	store   CredentialStore
	token   *oauth2.Token
	http    *http.Client
	limiter <-chan time.Time
}

// NewClient loads stored credentials and builds an API client. Tokens
// refreshed during use are persisted back through the CredentialStore.
func NewClient(ctx context.Context, store CredentialStore) (*Client, error) {
	creds, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(creds.RefreshToken) == "" && strings.TrimSpace(creds.AccessToken) == "" {
		return nil, ErrNotConnected
	}
	if strings.TrimSpace(creds.RealmId) == "" {
		return nil, errors.New("quickbooks realm id is empty")
	}

	baseURL := strings.TrimSpace(os.Getenv("QBO_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://quickbooks.api.intuit.com"
	}
	tokenURL := strings.TrimSpace(os.Getenv("QBO_TOKEN_URL"))
	if tokenURL == "" {
		tokenURL = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	}

	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("QBO_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		realmId: creds.RealmId,
		conf: &oauth2.Config{
			ClientID:     os.Getenv("QBO_CLIENT_ID"),
			ClientSecret: os.Getenv("QBO_CLIENT_SECRET"),
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
		store: store,
		token: &oauth2.Token{
			AccessToken:  creds.AccessToken,
			RefreshToken: creds.RefreshToken,
			Expiry:       creds.Expiry,
		},
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: time.Tick(interval),
	}, nil
}

// ensureToken returns a valid access token, refreshing and persisting it when
// the stored one has expired.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	if c.token.Valid() {
		return c.token.AccessToken, nil
	}
	return c.refreshToken(ctx)
}

func (c *Client) refreshToken(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.token.RefreshToken) == "" {
		return "", ErrAuthExpired
	}
	stale := &oauth2.Token{
		RefreshToken: c.token.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	tok, err := c.conf.TokenSource(ctx, stale).Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	c.token = tok
	if err := c.store.Save(ctx, Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		RealmId:      c.realmId,
	}); err != nil {
		return "", fmt.Errorf("persist refreshed tokens: %w", err)
	}
	return tok.AccessToken, nil
}

type queryResponse struct {
	QueryResponse struct {
		Invoice       []Invoice `json:"Invoice"`
		Bill          []Bill    `json:"Bill"`
		StartPosition int       `json:"startPosition"`
		MaxResults    int       `json:"maxResults"`
	} `json:"QueryResponse"`
}

func (c *Client) query(ctx context.Context, query string) (queryResponse, error) {
	<-c.limiter

	token, err := c.ensureToken(ctx)
	if err != nil {
		return queryResponse{}, err
	}

	body, status, err := c.doQuery(ctx, token, query)
	if err != nil {
		return queryResponse{}, err
	}
	if status == http.StatusUnauthorized {
		// Access token revoked server-side; refresh once and retry.
		token, err = c.refreshToken(ctx)
		if err != nil {
			return queryResponse{}, err
		}
		body, status, err = c.doQuery(ctx, token, query)
		if err != nil {
			return queryResponse{}, err
		}
		if status == http.StatusUnauthorized {
			return queryResponse{}, ErrAuthExpired
		}
	}
	if status < 200 || status >= 300 {
		return queryResponse{}, fmt.Errorf("quickbooks api error %d: %s", status, strings.TrimSpace(string(body)))
	}

	var parsed queryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return queryResponse{}, err
	}
	return parsed, nil
}

func (c *Client) doQuery(ctx context.Context, token string, query string) ([]byte, int, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("minorversion", "70")
	endpoint := fmt.Sprintf("%s/v3/company/%s/query?%s", c.baseURL, c.realmId, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return body, resp.StatusCode, nil
}

// ListInvoices fetches every invoice visible to the connected company file.
func (c *Client) ListInvoices(ctx context.Context) ([]Invoice, error) {
	var all []Invoice
	start := 1
	for {
		q := fmt.Sprintf("SELECT * FROM Invoice STARTPOSITION %d MAXRESULTS %d", start, defaultPageSize)
		resp, err := c.query(ctx, q)
		if err != nil {
			return all, err
		}
		all = append(all, resp.QueryResponse.Invoice...)
		if len(resp.QueryResponse.Invoice) < defaultPageSize {
			return all, nil
		}
		start += defaultPageSize
	}
}

// ListBills fetches every bill visible to the connected company file.
func (c *Client) ListBills(ctx context.Context) ([]Bill, error) {
	var all []Bill
	start := 1
	for {
		q := fmt.Sprintf("SELECT * FROM Bill STARTPOSITION %d MAXRESULTS %d", start, defaultPageSize)
		resp, err := c.query(ctx, q)
		if err != nil {
			return all, err
		}
		all = append(all, resp.QueryResponse.Bill...)
		if len(resp.QueryResponse.Bill) < defaultPageSize {
			return all, nil
		}
		start += defaultPageSize
	}
}
