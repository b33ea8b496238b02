// internal/core/domain/snapshot.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the immutable projection produced once per orchestrated pass.
// Consumers treat it as read-only; a new mutation produces a new Snapshot.
type Snapshot struct {
	Items         []LineItem      `json:"items"`
	TotalQuantity int             `json:"total_quantity"`
	TotalSum      decimal.Decimal `json:"total_sum"`
	Inclusion     map[string]bool `json:"inclusion"`
	ChangedIDs    []string        `json:"changed_ids"`
	TargetID      string          `json:"target_id,omitempty"`
	Reason        string          `json:"reason"`
	Timestamp     time.Time       `json:"timestamp"`
}

// BuildSnapshot assembles a snapshot from already-copied state. The inclusion
// map is copied so later tracker writes cannot leak into the value.
func BuildSnapshot(items []LineItem, totals Totals, inclusion map[string]bool, changed []string, targetID, reason string, now time.Time) Snapshot {
	inc := make(map[string]bool, len(inclusion))
	for k, v := range inclusion {
		inc[k] = v
	}
	return Snapshot{
		Items:         items,
		TotalQuantity: totals.TotalQuantity,
		TotalSum:      totals.TotalSum,
		Inclusion:     inc,
		ChangedIDs:    changed,
		TargetID:      targetID,
		Reason:        reason,
		Timestamp:     now,
	}
}
