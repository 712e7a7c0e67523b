package sitesync

import (
	"context"
	"errors"
	"time"

	"github.com/cascadebuilt/sitebooks_backend/gdrive"
	"github.com/cascadebuilt/sitebooks_backend/models"
	"github.com/cascadebuilt/sitebooks_backend/quickbooks"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuickBooksCredentialStore backs the accounting adapter with the
// integration_credentials table.
type QuickBooksCredentialStore struct {
	db *gorm.DB
}

func NewQuickBooksCredentialStore(db *gorm.DB) *QuickBooksCredentialStore {
	return &QuickBooksCredentialStore{db: db}
}

func (s *QuickBooksCredentialStore) Load(ctx context.Context) (quickbooks.Credentials, error) {
	cred, err := loadCredential(ctx, s.db, models.CredentialProviderQuickBooks)
	if err != nil {
		return quickbooks.Credentials{}, err
	}
	if cred == nil {
		return quickbooks.Credentials{}, nil
	}
	out := quickbooks.Credentials{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		RealmId:      cred.RealmId,
	}
	if cred.ExpiresAt != nil {
		out.Expiry = *cred.ExpiresAt
	}
	return out, nil
}

func (s *QuickBooksCredentialStore) Save(ctx context.Context, creds quickbooks.Credentials) error {
	return saveCredential(ctx, s.db, models.IntegrationCredential{
		Provider:     models.CredentialProviderQuickBooks,
		Status:       models.IntegrationStatusConnected,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    timePtr(creds.Expiry),
		RealmId:      creds.RealmId,
	})
}

// DriveCredentialStore is the drive-side counterpart.
type DriveCredentialStore struct {
	db *gorm.DB
}

func NewDriveCredentialStore(db *gorm.DB) *DriveCredentialStore {
	return &DriveCredentialStore{db: db}
}

func (s *DriveCredentialStore) Load(ctx context.Context) (gdrive.Credentials, error) {
	cred, err := loadCredential(ctx, s.db, models.CredentialProviderGoogleDrive)
	if err != nil {
		return gdrive.Credentials{}, err
	}
	if cred == nil {
		return gdrive.Credentials{}, nil
	}
	out := gdrive.Credentials{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
	}
	if cred.ExpiresAt != nil {
		out.Expiry = *cred.ExpiresAt
	}
	return out, nil
}

func (s *DriveCredentialStore) Save(ctx context.Context, creds gdrive.Credentials) error {
	return saveCredential(ctx, s.db, models.IntegrationCredential{
		Provider:     models.CredentialProviderGoogleDrive,
		Status:       models.IntegrationStatusConnected,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    timePtr(creds.Expiry),
	})
}

func loadCredential(ctx context.Context, db *gorm.DB, provider string) (*models.IntegrationCredential, error) {
	var cred models.IntegrationCredential
	err := db.WithContext(ctx).Where("provider = ?", provider).Take(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Missing row reads as empty credentials; adapters translate that
		// into their own not-connected error.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func saveCredential(ctx context.Context, db *gorm.DB, cred models.IntegrationCredential) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "access_token", "refresh_token", "expires_at", "realm_id",
		}),
	}).Create(&cred).Error
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
