package migration

import "github.com/rflorenc/shop-migration-workbench/internal/models"

// Summarize counts outcomes by status.
func Summarize(outcomes []models.Outcome) models.Summary {
	s := models.Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case models.StatusCreated:
			s.Created++
		case models.StatusUpdated:
			s.Updated++
		case models.StatusSkipped:
			s.Skipped++
		case models.StatusError:
			s.Errors++
		case models.StatusConflict:
			s.Conflicts++
		}
	}
	return s
}

// Reconcile pads the outcomes of a simple kind with error outcomes for ids
// that never got one, so every requested id is accounted for. Composite
// kinds report children too and are returned unchanged.
func Reconcile(kind models.EntityKind, ids []string, outcomes []models.Outcome) []models.Outcome {
	if kind.Composite() || len(outcomes) >= len(ids) {
		return outcomes
	}
	padded := make([]models.Outcome, len(outcomes), len(ids))
	copy(padded, outcomes)
	for _, id := range ids[len(outcomes):] {
		padded = append(padded, models.Outcome{
			ID:      id,
			Title:   id,
			Status:  models.StatusError,
			Message: MsgIncomplete,
		})
	}
	return padded
}
