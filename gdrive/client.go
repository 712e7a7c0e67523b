package gdrive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// ErrNotConnected means no drive credentials are stored; the user must reconnect.
var ErrNotConnected = errors.New("google drive is not connected")

const folderMimeType = "application/vnd.google-apps.folder"

// Credentials is the OAuth state for the connected drive account.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// CredentialStore persists Credentials; the client saves through it whenever
// the underlying token source refreshes.
type CredentialStore interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
}

type Folder struct {
	Id   string
	Name string
}

type Client struct {
	svc *drive.Service
}

// NewClient builds a drive client from stored credentials.
func NewClient(ctx context.Context, store CredentialStore) (*Client, error) {
	creds, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(creds.RefreshToken) == "" && strings.TrimSpace(creds.AccessToken) == "" {
		return nil, ErrNotConnected
	}

	conf := &oauth2.Config{
		ClientID:     os.Getenv("GDRIVE_CLIENT_ID"),
		ClientSecret: os.Getenv("GDRIVE_CLIENT_SECRET"),
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveMetadataReadonlyScope},
	}
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Expiry:       creds.Expiry,
	}
	src := &persistingTokenSource{
		ctx:   ctx,
		base:  conf.TokenSource(ctx, token),
		store: store,
		last:  token.AccessToken,
	}

	svc, err := drive.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, err
	}
	return &Client{svc: svc}, nil
}

// persistingTokenSource saves refreshed tokens back to the CredentialStore so
// the next run does not burn another refresh.
type persistingTokenSource struct {
	ctx   context.Context
	base  oauth2.TokenSource
	store CredentialStore
	mu    sync.Mutex
	last  string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.store.Save(s.ctx, Credentials{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			Expiry:       tok.Expiry,
		}); err != nil {
			return nil, fmt.Errorf("persist refreshed tokens: %w", err)
		}
	}
	return tok, nil
}

// ListFolders returns the immediate child folders of rootId.
func (c *Client) ListFolders(ctx context.Context, rootId string) ([]Folder, error) {
	if strings.TrimSpace(rootId) == "" {
		return nil, errors.New("root folder id is required")
	}

	q := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false", rootId, folderMimeType)

	var folders []Folder
	pageToken := ""
	for {
		call := c.svc.Files.List().
			Q(q).
			Fields("nextPageToken, files(id, name)").
			PageSize(200).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return folders, err
		}
		for _, f := range resp.Files {
			folders = append(folders, Folder{Id: f.Id, Name: f.Name})
		}
		if resp.NextPageToken == "" {
			return folders, nil
		}
		pageToken = resp.NextPageToken
	}
}

// HasSubfolderNamed reports whether folderId has a child folder whose name
// contains pattern (case-insensitive on drive's side).
func (c *Client) HasSubfolderNamed(ctx context.Context, folderId string, pattern string) (bool, error) {
	escaped := strings.ReplaceAll(pattern, "'", "\\'")
	q := fmt.Sprintf("'%s' in parents and mimeType = '%s' and name contains '%s' and trashed = false",
		folderId, folderMimeType, escaped)

	resp, err := c.svc.Files.List().
		Q(q).
		Fields("files(id)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return false, err
	}
	return len(resp.Files) > 0, nil
}
