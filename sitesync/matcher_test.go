package sitesync

import (
	"testing"

	"github.com/cascadebuilt/sitebooks_backend/models"
)

func TestScoreInvoiceProject_AliasMatchScoresHighest(t *testing.T) {
	r := testResolver(t)
	project := models.Project{ClientCode: "CD", ClientName: "Certified Demolition", Description: "PetroCan Kamloops"}

	score, _ := scoreInvoiceProject("cert demo", project, r)
	if score != scoreClientCodeMatch {
		t.Fatalf("alias match score = %v, want %v", score, scoreClientCodeMatch)
	}
}

func TestScoreInvoiceProject_NameContainment(t *testing.T) {
	r := testResolver(t)
	project := models.Project{ClientCode: "NWC", ClientName: "Northwest Contracting", Description: "Shop building"}

	score, _ := scoreInvoiceProject("Northwest Contracting Ltd", project, r)
	if score != scoreClientNameMatch {
		t.Fatalf("containment score = %v, want %v", score, scoreClientNameMatch)
	}
}

func TestScoreInvoiceProject_DescriptionMention(t *testing.T) {
	r := testResolver(t)
	project := models.Project{ClientCode: "NWC", ClientName: "Northwest Contracting", Description: "PetroCan Kamloops reroof"}

	score, _ := scoreInvoiceProject("PetroCan", project, r)
	if score != scoreDescriptionMatch {
		t.Fatalf("description score = %v, want %v", score, scoreDescriptionMatch)
	}
}

func TestScoreInvoiceProject_NoSignalScoresZero(t *testing.T) {
	r := testResolver(t)
	project := models.Project{ClientCode: "NWC", ClientName: "Northwest Contracting", Description: "Shop building"}

	if score, reason := scoreInvoiceProject("Totally Unrelated", project, r); score != 0 || reason != "" {
		t.Fatalf("unrelated pair scored %v (%q)", score, reason)
	}
	if score, _ := scoreInvoiceProject("", project, r); score != 0 {
		t.Fatalf("empty client name scored %v", score)
	}
}

func TestConfidenceBucket(t *testing.T) {
	if got := confidenceBucket(scoreClientCodeMatch); got != models.MatchConfidenceHigh {
		t.Fatalf("0.95 bucket = %q", got)
	}
	if got := confidenceBucket(scoreClientNameMatch); got != models.MatchConfidenceMedium {
		t.Fatalf("0.85 bucket = %q", got)
	}
	if got := confidenceBucket(0.9); got != models.MatchConfidenceHigh {
		t.Fatalf("0.9 bucket = %q", got)
	}
}

func TestAutoAssignThreshold(t *testing.T) {
	// The description-only tier sits under the threshold: suggested, never
	// written.
	if scoreDescriptionMatch >= AutoAssignThreshold {
		t.Fatalf("description tier %v must stay below threshold %v", scoreDescriptionMatch, AutoAssignThreshold)
	}
	if scoreClientNameMatch < AutoAssignThreshold || scoreClientCodeMatch < AutoAssignThreshold {
		t.Fatal("name and code tiers must clear the threshold")
	}
}
