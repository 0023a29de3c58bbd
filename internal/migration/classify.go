package migration

import (
	"github.com/rflorenc/shop-migration-workbench/internal/entity"
	"github.com/rflorenc/shop-migration-workbench/internal/models"
)

// Action is what the runner does with one source record.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionSkip
	ActionAsk
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionSkip:
		return "skip"
	case ActionAsk:
		return "ask"
	}
	return "unknown"
}

// Classify decides the action for a source record given its target match
// (nil when the target has none) and the conflict policy. Without a match
// the only path is Create.
func Classify(match *entity.Match, policy models.ConflictPolicy) Action {
	if match == nil {
		return ActionCreate
	}
	switch policy {
	case models.PolicyOverwrite:
		return ActionUpdate
	case models.PolicyAsk:
		return ActionAsk
	default:
		return ActionSkip
	}
}
