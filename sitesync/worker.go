package sitesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cascadebuilt/sitebooks_backend/config"
	"github.com/cascadebuilt/sitebooks_backend/gdrive"
	"github.com/cascadebuilt/sitebooks_backend/models"
	"github.com/cascadebuilt/sitebooks_backend/quickbooks"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("sitebooks-sync")

// AccountingSyncResult is the outcome of one accounting-source run.
type AccountingSyncResult struct {
	RunId             uint   `json:"run_id"`
	InvoicesSynced    int    `json:"invoices_synced"`
	BillsSynced       int    `json:"bills_synced"`
	ConflictsDetected int    `json:"conflicts_detected"`
	Error             string `json:"error,omitempty"`
}

// FolderSyncResult is the outcome of one drive-source run.
type FolderSyncResult struct {
	RunId             uint   `json:"run_id"`
	RecordsSynced     int    `json:"records_synced"`
	FoldersSkipped    int    `json:"folders_skipped"`
	ConflictsDetected int    `json:"conflicts_detected"`
	Error             string `json:"error,omitempty"`
}

// RunQuickBooksSync pulls invoices and bills from the connected company file
// and reconciles both against local state under a single run. The returned
// error is also recorded on the result and on the failed run row.
func RunQuickBooksSync(ctx context.Context, db *gorm.DB) (AccountingSyncResult, error) {
	ctx, span := tracer.Start(ctx, "sync.quickbooks")
	defer span.End()

	var result AccountingSyncResult

	runId, _, err := withSyncRun(ctx, db, models.SyncSourceQuickBooks, func(ctx context.Context) (int, error) {
		client, err := quickbooks.NewClient(ctx, NewQuickBooksCredentialStore(db))
		if err != nil {
			return 0, err
		}
		now := time.Now()

		invoices, err := client.ListInvoices(ctx)
		if err != nil {
			return 0, fmt.Errorf("list invoices: %w", err)
		}
		bills, err := client.ListBills(ctx)
		if err != nil {
			return 0, fmt.Errorf("list bills: %w", err)
		}

		overriddenInvoices, err := loadOverriddenInvoices(ctx, db)
		if err != nil {
			return 0, err
		}
		overriddenBills, err := loadOverriddenBills(ctx, db)
		if err != nil {
			return 0, err
		}

		invPlan := BuildDocumentPlan(KindInvoice, normalizeInvoices(invoices), overriddenInvoices, now)
		invSynced, invConflicts, err := applyDocumentPlan(ctx, db, KindInvoice, invPlan, models.SyncSourceQuickBooks, now)
		if err != nil {
			return invSynced, err
		}

		billPlan := BuildDocumentPlan(KindBill, normalizeBills(bills), overriddenBills, now)
		billSynced, billConflicts, err := applyDocumentPlan(ctx, db, KindBill, billPlan, models.SyncSourceQuickBooks, now)
		if err != nil {
			return invSynced + billSynced, err
		}

		result.InvoicesSynced = invSynced
		result.BillsSynced = billSynced
		result.ConflictsDetected = invConflicts + billConflicts
		return invSynced + billSynced, nil
	})

	result.RunId = runId
	if err != nil {
		result.Error = err.Error()
	}
	return result, err
}

// RunProjectsSync discovers project folders under the configured drive root.
func RunProjectsSync(ctx context.Context, db *gorm.DB) (FolderSyncResult, error) {
	return runFolderSync(ctx, db, models.SyncSourceProjects)
}

// RunBidsSync is the 6-digit bid-folder variant of RunProjectsSync.
func RunBidsSync(ctx context.Context, db *gorm.DB) (FolderSyncResult, error) {
	return runFolderSync(ctx, db, models.SyncSourceBids)
}

func runFolderSync(ctx context.Context, db *gorm.DB, source string) (FolderSyncResult, error) {
	ctx, span := tracer.Start(ctx, "sync."+source)
	defer span.End()

	var result FolderSyncResult

	runId, _, err := withSyncRun(ctx, db, source, func(ctx context.Context) (int, error) {
		client, err := gdrive.NewClient(ctx, NewDriveCredentialStore(db))
		if err != nil {
			return 0, err
		}

		rootEnv := "PROJECTS_FOLDER_ID"
		parse := ParseProjectFolder
		if source == models.SyncSourceBids {
			rootEnv = "BIDS_FOLDER_ID"
			parse = ParseBidFolder
		}
		rootId := strings.TrimSpace(os.Getenv(rootEnv))
		if rootId == "" {
			return 0, errors.New(rootEnv + " is not configured")
		}

		folders, err := client.ListFolders(ctx, rootId)
		if err != nil {
			return 0, fmt.Errorf("list folders: %w", err)
		}

		resolver, err := LoadClientResolver(ctx, db)
		if err != nil {
			return 0, err
		}

		logger := config.GetLogger()
		now := time.Now()
		external := make([]ExternalProject, 0, len(folders))
		for _, f := range folders {
			parsed := parse(f.Name)
			if parsed == nil {
				result.FoldersSkipped++
				logger.WithField("folder", f.Name).Info("skipping folder with unparseable name")
				continue
			}

			p := ExternalProject{
				FolderId:    f.Id,
				Code:        parsed.Code,
				ClientCode:  resolver.ResolveCode(parsed.ClientCode),
				ClientName:  resolver.ResolveName(parsed.ClientCode),
				Description: parsed.Description,
				IsBid:       source == models.SyncSourceBids,
			}
			// Subfolder probes are best-effort; a listing hiccup reads as absent.
			p.HasEstimate, _ = client.HasSubfolderNamed(ctx, f.Id, envOrDefault("ESTIMATE_SUBFOLDER_PATTERN", "Estimate"))
			if source == models.SyncSourceProjects {
				p.HasPBS, _ = client.HasSubfolderNamed(ctx, f.Id, envOrDefault("PBS_SUBFOLDER_PATTERN", "PBS"))
			}
			external = append(external, p)
		}

		closed, err := loadClosedProjects(ctx, db)
		if err != nil {
			return 0, err
		}

		plan := BuildProjectPlan(external, closed)
		synced, conflicts, err := applyProjectPlan(ctx, db, plan, source, now)
		if err != nil {
			return synced, err
		}
		result.RecordsSynced = synced
		result.ConflictsDetected = conflicts
		return synced, nil
	})

	result.RunId = runId
	if err != nil {
		result.Error = err.Error()
	}
	return result, err
}

func loadOverriddenInvoices(ctx context.Context, db *gorm.DB) (map[string]OverriddenDocument, error) {
	var rows []models.Invoice
	if err := db.WithContext(ctx).Where("manual_override = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]OverriddenDocument, len(rows))
	for _, r := range rows {
		out[r.ExternalId] = OverriddenDocument{ID: r.ID, Counterparty: r.ClientName, Amount: r.Amount}
	}
	return out, nil
}

func loadOverriddenBills(ctx context.Context, db *gorm.DB) (map[string]OverriddenDocument, error) {
	var rows []models.Bill
	if err := db.WithContext(ctx).Where("manual_override = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]OverriddenDocument, len(rows))
	for _, r := range rows {
		out[r.ExternalId] = OverriddenDocument{ID: r.ID, Counterparty: r.VendorName, Amount: r.Amount}
	}
	return out, nil
}

func loadClosedProjects(ctx context.Context, db *gorm.DB) (map[string]uint, error) {
	var rows []models.Project
	if err := db.WithContext(ctx).Where("status = ?", models.ProjectStatusClosed).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]uint, len(rows))
	for _, r := range rows {
		out[r.ExternalFolderId] = r.ID
	}
	return out, nil
}

func normalizeInvoices(invoices []quickbooks.Invoice) []ExternalDocument {
	out := make([]ExternalDocument, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, ExternalDocument{
			ExternalId:   inv.Id,
			Counterparty: inv.CustomerRef.Name,
			Amount:       decimalFromNumber(inv.TotalAmt),
			Balance:      decimalFromNumber(inv.Balance),
			IssueDate:    parseAPIDate(inv.TxnDate),
			DueDate:      parseAPIDate(inv.DueDate),
			Memo:         inv.PrivateNote,
		})
	}
	return out
}

func normalizeBills(bills []quickbooks.Bill) []ExternalDocument {
	out := make([]ExternalDocument, 0, len(bills))
	for _, b := range bills {
		out = append(out, ExternalDocument{
			ExternalId:   b.Id,
			Counterparty: b.VendorRef.Name,
			Amount:       decimalFromNumber(b.TotalAmt),
			Balance:      decimalFromNumber(b.Balance),
			IssueDate:    parseAPIDate(b.TxnDate),
			DueDate:      parseAPIDate(b.DueDate),
			Memo:         b.PrivateNote,
		})
	}
	return out
}

func decimalFromNumber(n json.Number) decimal.Decimal {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseAPIDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func envOrDefault(key string, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
