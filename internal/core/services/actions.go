// internal/core/services/actions.go
package services

import "strings"

// ActionType enumerates the requests the presenter accepts.
type ActionType string

const (
	ActionAdd        ActionType = "ADD"
	ActionRemove     ActionType = "REMOVE"
	ActionQtySet     ActionType = "QTY_SET"
	ActionQtyInc     ActionType = "QTY_INC"
	ActionQtyDec     ActionType = "QTY_DEC"
	ActionIncludeSet ActionType = "INCLUDE_SET"
	ActionIncludeAll ActionType = "INCLUDE_ALL"
	ActionFavToggle  ActionType = "FAV_TOGGLE"
)

// Action is the external request envelope handed to Presenter.Dispatch.
type Action struct {
	Type     ActionType `json:"type"`
	ID       string     `json:"id,omitempty"`
	Qty      int        `json:"qty,omitempty"`
	Included bool       `json:"included"`
}

// Valid reports whether the action is well formed enough to dispatch.
func (a Action) Valid() bool {
	switch a.Type {
	case ActionAdd, ActionRemove, ActionQtySet, ActionQtyInc, ActionQtyDec,
		ActionIncludeSet, ActionFavToggle:
		return strings.TrimSpace(a.ID) != ""
	case ActionIncludeAll:
		return true
	default:
		return false
	}
}

// Reason is the snapshot reason string recorded for this action.
func (a Action) Reason() string {
	return strings.ToLower(string(a.Type))
}
