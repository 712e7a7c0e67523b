package quickbooks

import (
	"context"
	"encoding/json"
	"time"
)

// Credentials is the OAuth state for one connected company file.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	RealmId      string
}

// CredentialStore persists Credentials across sync runs. The client calls
// Save whenever it refreshes tokens, so the caller owns persistence.
type CredentialStore interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
}

type Ref struct {
	Value string `json:"value"`
	Name  string `json:"name"`
}

type Invoice struct {
	Id          string      `json:"Id"`
	DocNumber   string      `json:"DocNumber"`
	CustomerRef Ref         `json:"CustomerRef"`
	TotalAmt    json.Number `json:"TotalAmt"`
	Balance     json.Number `json:"Balance"`
	TxnDate     string      `json:"TxnDate"`
	DueDate     string      `json:"DueDate"`
	PrivateNote string      `json:"PrivateNote"`
}

type Bill struct {
	Id          string      `json:"Id"`
	DocNumber   string      `json:"DocNumber"`
	VendorRef   Ref         `json:"VendorRef"`
	TotalAmt    json.Number `json:"TotalAmt"`
	Balance     json.Number `json:"Balance"`
	TxnDate     string      `json:"TxnDate"`
	DueDate     string      `json:"DueDate"`
	PrivateNote string      `json:"PrivateNote"`
}
