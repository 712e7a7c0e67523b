package sitesync

import (
	"context"
	"strings"

	"github.com/cascadebuilt/sitebooks_backend/models"
	"gorm.io/gorm"
)

// ClientResolver maps the inconsistent client identifiers seen in folder
// names and accounting counterparty strings to one canonical client code.
// Unknown codes pass through unchanged; resolution never fails.
type ClientResolver struct {
	codes map[string]string // lower(alias or code) -> canonical code
	names map[string]string // canonical code -> display name
}

func NewClientResolver(mappings []models.ClientMapping) *ClientResolver {
	r := &ClientResolver{
		codes: make(map[string]string, len(mappings)*2),
		names: make(map[string]string, len(mappings)),
	}
	for _, m := range mappings {
		code := strings.TrimSpace(m.Code)
		if code == "" {
			continue
		}
		r.codes[strings.ToLower(code)] = code
		for _, alias := range m.Aliases() {
			alias = strings.TrimSpace(alias)
			if alias == "" {
				continue
			}
			r.codes[strings.ToLower(alias)] = code
		}
		if name := strings.TrimSpace(m.DisplayName); name != "" {
			r.names[code] = name
		}
	}
	return r
}

func LoadClientResolver(ctx context.Context, db *gorm.DB) (*ClientResolver, error) {
	var mappings []models.ClientMapping
	if err := db.WithContext(ctx).Find(&mappings).Error; err != nil {
		return nil, err
	}
	return NewClientResolver(mappings), nil
}

// ResolveCode returns the canonical client code for a raw code or alias,
// falling back to the raw value when nothing is registered.
func (r *ClientResolver) ResolveCode(raw string) string {
	raw = strings.TrimSpace(raw)
	if code, ok := r.codes[strings.ToLower(raw)]; ok {
		return code
	}
	return raw
}

// ResolveName returns the registered display name for a raw code or alias,
// falling back to the raw value when none is registered.
func (r *ClientResolver) ResolveName(raw string) string {
	code := r.ResolveCode(raw)
	if name, ok := r.names[code]; ok {
		return name
	}
	return strings.TrimSpace(raw)
}
