package sitesync

import (
	"context"
	"fmt"
	"strings"

	"github.com/cascadebuilt/sitebooks_backend/config"
	"github.com/cascadebuilt/sitebooks_backend/models"
	"gorm.io/gorm"
)

// AutoAssignThreshold is the minimum score that gets an assignment written.
// Anything below is reported as a suggestion only.
const AutoAssignThreshold = 0.8

const (
	scoreClientCodeMatch  = 0.95
	scoreClientNameMatch  = 0.85
	scoreDescriptionMatch = 0.7
)

type MatchCandidate struct {
	InvoiceId  uint    `json:"invoice_id"`
	ProjectId  uint    `json:"project_id,omitempty"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
	Assigned   bool    `json:"assigned"`
}

type MatchResult struct {
	Matched    int              `json:"matched"`
	Unmatched  int              `json:"unmatched"`
	Candidates []MatchCandidate `json:"candidates"`
}

// scoreInvoiceProject scores one invoice/project pair from the invoice's
// client name. Canonical code equality beats name overlap beats a description
// mention.
func scoreInvoiceProject(clientName string, project models.Project, resolver *ClientResolver) (float64, string) {
	canonical := resolver.ResolveCode(clientName)
	if project.ClientCode != "" && strings.EqualFold(canonical, project.ClientCode) {
		return scoreClientCodeMatch, fmt.Sprintf("client %q resolves to code %s", clientName, project.ClientCode)
	}

	name := strings.ToLower(strings.TrimSpace(clientName))
	if name == "" {
		return 0, ""
	}
	projectClient := strings.ToLower(strings.TrimSpace(project.ClientName))
	if projectClient != "" && (strings.Contains(projectClient, name) || strings.Contains(name, projectClient)) {
		return scoreClientNameMatch, fmt.Sprintf("client %q overlaps project client %q", clientName, project.ClientName)
	}
	if desc := strings.ToLower(project.Description); desc != "" && strings.Contains(desc, name) {
		return scoreDescriptionMatch, fmt.Sprintf("client %q appears in project description", clientName)
	}
	return 0, ""
}

func confidenceBucket(score float64) string {
	if score >= 0.9 {
		return models.MatchConfidenceHigh
	}
	return models.MatchConfidenceMedium
}

// RunAutoMatch proposes a project for every unassigned invoice and writes the
// assignment when the best score clears the threshold. Each invoice is
// written independently; one failed write does not stop the rest.
func RunAutoMatch(ctx context.Context, db *gorm.DB) (MatchResult, error) {
	var result MatchResult

	var invoices []models.Invoice
	if err := db.WithContext(ctx).Where("project_id IS NULL").Find(&invoices).Error; err != nil {
		return result, err
	}
	var projects []models.Project
	if err := db.WithContext(ctx).
		Where("status = ? AND is_bid = ?", models.ProjectStatusActive, false).
		Find(&projects).Error; err != nil {
		return result, err
	}
	resolver, err := LoadClientResolver(ctx, db)
	if err != nil {
		return result, err
	}

	logger := config.GetLogger()
	for _, inv := range invoices {
		var best models.Project
		bestScore := 0.0
		bestReason := ""
		for _, p := range projects {
			score, reason := scoreInvoiceProject(inv.ClientName, p, resolver)
			if score > bestScore {
				best, bestScore, bestReason = p, score, reason
			}
		}

		if bestScore == 0 {
			result.Unmatched++
			result.Candidates = append(result.Candidates, MatchCandidate{InvoiceId: inv.ID})
			continue
		}

		cand := MatchCandidate{
			InvoiceId:  inv.ID,
			ProjectId:  best.ID,
			Confidence: bestScore,
			Reason:     bestReason,
		}
		if bestScore >= AutoAssignThreshold {
			err := db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", inv.ID).Updates(map[string]interface{}{
				"project_id":       best.ID,
				"match_confidence": confidenceBucket(bestScore),
			}).Error
			if err != nil {
				config.LogError(logger, "sitesync", "RunAutoMatch", "assign invoice", map[string]interface{}{
					"invoiceId": inv.ID,
					"projectId": best.ID,
				}, err)
				result.Unmatched++
			} else {
				cand.Assigned = true
				result.Matched++
			}
		} else {
			result.Unmatched++
		}
		result.Candidates = append(result.Candidates, cand)
	}

	return result, nil
}
