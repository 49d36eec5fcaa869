package service

import (
	"strings"

	"github.com/CC-PatrickC/MyGovRemaster/internal/models"
)

// Audit values are kept to 200 characters; anything longer is cut for
// display and not preserved.
const maxAuditValueLen = 200

// fieldSnapshot holds trimmed tracked-field values. Two independent
// snapshots (pre-edit persisted state and the validated submission)
// feed the diff, never live references to the record being edited.
type fieldSnapshot map[string]string

func snapshotTracked(r *models.Request) fieldSnapshot {
	return fieldSnapshot{
		"title":        strings.TrimSpace(r.Title),
		"description":  strings.TrimSpace(r.Description),
		"department":   strings.TrimSpace(r.Department),
		"stage":        strings.TrimSpace(r.Stage),
		"request_type": strings.TrimSpace(r.RequestType),
		"priority":     strings.TrimSpace(r.Priority),
	}
}

// diffTracked produces one change entry per tracked field whose
// pre-edit value differs from the submitted value.
func diffTracked(requestID string, before, submitted fieldSnapshot, author string) []models.ChangeHistoryEntry {
	var out []models.ChangeHistoryEntry
	for _, f := range trackedFields {
		oldV, newV := before[f], submitted[f]
		if oldV == newV {
			continue
		}
		out = append(out, models.ChangeHistoryEntry{
			RequestID: requestID,
			FieldName: FieldLabel(f),
			OldValue:  truncateValue(oldV),
			NewValue:  truncateValue(newV),
			Author:    author,
		})
	}
	return out
}

func truncateValue(s string) string {
	r := []rune(s)
	if len(r) > maxAuditValueLen {
		return string(r[:maxAuditValueLen])
	}
	return s
}
