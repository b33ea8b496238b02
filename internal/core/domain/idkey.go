// internal/core/domain/idkey.go
package domain

import (
	"fmt"
	"strings"
)

// idKeyPriority is the fixed lookup order for map-shaped identifiers.
var idKeyPriority = []string{"id", "name", "productId", "cartId", "itemId"}

// Keyed is implemented by values that know their own cart key.
type Keyed interface {
	ItemKey() string
}

// NormalizeID maps any identifier or item-like value to a stable string key.
// It is pure and idempotent: NormalizeID(NormalizeID(x)) == NormalizeID(x).
func NormalizeID(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case LineItem:
		return strings.TrimSpace(t.ID)
	case *LineItem:
		if t == nil {
			return ""
		}
		return strings.TrimSpace(t.ID)
	case Product:
		return strings.TrimSpace(t.ID)
	case *Product:
		if t == nil {
			return ""
		}
		return strings.TrimSpace(t.ID)
	case Keyed:
		return strings.TrimSpace(t.ItemKey())
	case map[string]string:
		for _, k := range idKeyPriority {
			if s, ok := t[k]; ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	case map[string]any:
		for _, k := range idKeyPriority {
			if raw, ok := t[k]; ok {
				if s := NormalizeID(raw); s != "" {
					return s
				}
			}
		}
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}
