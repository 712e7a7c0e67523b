package sitesync

import (
	"testing"

	"github.com/cascadebuilt/sitebooks_backend/models"
)

func testResolver(t *testing.T) *ClientResolver {
	t.Helper()
	m := models.ClientMapping{
		Code:        "CD",
		DisplayName: "Certified Demolition",
		AliasesJSON: models.EncodeAliases([]string{"cert demo", "Certified Demo Ltd"}),
	}
	return NewClientResolver([]models.ClientMapping{m})
}

func TestResolveCode_AliasAndCaseInsensitive(t *testing.T) {
	r := testResolver(t)

	cases := map[string]string{
		"CD":                 "CD",
		"cd":                 "CD",
		"cert demo":          "CD",
		"CERT DEMO":          "CD",
		"Certified Demo Ltd": "CD",
		"  cd  ":             "CD",
	}
	for in, want := range cases {
		if got := r.ResolveCode(in); got != want {
			t.Fatalf("ResolveCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveCode_UnknownPassesThrough(t *testing.T) {
	r := testResolver(t)
	if got := r.ResolveCode("XYZ"); got != "XYZ" {
		t.Fatalf("ResolveCode(XYZ) = %q, want passthrough", got)
	}
}

func TestResolveName_DisplayNameAndFallback(t *testing.T) {
	r := testResolver(t)
	if got := r.ResolveName("cert demo"); got != "Certified Demolition" {
		t.Fatalf("ResolveName(cert demo) = %q", got)
	}
	if got := r.ResolveName("XYZ"); got != "XYZ" {
		t.Fatalf("ResolveName(XYZ) = %q, want raw fallback", got)
	}
}
