package sitesync

import "testing"

func TestParseProjectFolder_ValidNames(t *testing.T) {
	cases := []struct {
		in          string
		code        string
		clientCode  string
		description string
	}{
		{"2601007 - CD - PetroCan Kamloops", "2601007", "CD", "PetroCan Kamloops"},
		{"2601007-CD-PetroCan Kamloops", "2601007", "CD", "PetroCan Kamloops"},
		{"2601007  -  CD  -  PetroCan Kamloops", "2601007", "CD", "PetroCan Kamloops"},
		// Hyphens are allowed in the free text.
		{"2601007 - CD - Shop - Phase 2 - Reroof", "2601007", "CD", "Shop - Phase 2 - Reroof"},
	}
	for _, tc := range cases {
		p := ParseProjectFolder(tc.in)
		if p == nil {
			t.Fatalf("ParseProjectFolder(%q) returned nil", tc.in)
		}
		if p.Code != tc.code || p.ClientCode != tc.clientCode || p.Description != tc.description {
			t.Fatalf("ParseProjectFolder(%q) = %+v", tc.in, p)
		}
	}
}

func TestParseProjectFolder_InvalidNames(t *testing.T) {
	cases := []string{
		"",
		"not a valid name",
		"2601007 - CD",            // only two segments
		"260100 - CD - too short", // 6 digits on the project side
		"26010071 - CD - too long",
		"260100a - CD - not digits",
		"2601007 -  - no client",
		"2601007 - CD - ",
	}
	for _, tc := range cases {
		if p := ParseProjectFolder(tc); p != nil {
			t.Fatalf("ParseProjectFolder(%q) = %+v, want nil", tc, p)
		}
	}
}

func TestParseBidFolder_SixDigitCode(t *testing.T) {
	p := ParseBidFolder("260012 - NWC - Tender package")
	if p == nil {
		t.Fatal("ParseBidFolder returned nil")
	}
	if p.Code != "260012" || p.ClientCode != "NWC" || p.Description != "Tender package" {
		t.Fatalf("unexpected parse: %+v", p)
	}

	if p := ParseBidFolder("2600123 - NWC - seven digits is a project"); p != nil {
		t.Fatalf("ParseBidFolder accepted a 7-digit code: %+v", p)
	}
}
