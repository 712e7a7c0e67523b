package sitesync

import "strings"

// ParsedFolder is the identity extracted from a drive folder name.
type ParsedFolder struct {
	Code        string
	ClientCode  string
	Description string
}

// ParseProjectFolder parses "<7-digit code> - <client code> - <free text>".
// Returns nil when the name does not match; never panics on short input.
func ParseProjectFolder(name string) *ParsedFolder {
	return parseFolder(name, 7)
}

// ParseBidFolder parses the 6-digit bid variant of the same pattern.
func ParseBidFolder(name string) *ParsedFolder {
	return parseFolder(name, 6)
}

func parseFolder(name string, codeLen int) *ParsedFolder {
	// The description may itself contain hyphens, so only split twice.
	parts := strings.SplitN(name, "-", 3)
	if len(parts) < 3 {
		return nil
	}

	code := strings.TrimSpace(parts[0])
	clientCode := strings.TrimSpace(parts[1])
	description := strings.TrimSpace(parts[2])

	if len(code) != codeLen || !isDigits(code) {
		return nil
	}
	if clientCode == "" || description == "" {
		return nil
	}

	return &ParsedFolder{
		Code:        code,
		ClientCode:  clientCode,
		Description: description,
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
