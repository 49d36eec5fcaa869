package service

import (
	"strings"

	"github.com/CC-PatrickC/MyGovRemaster/internal/models"
)

// StageClass decides which edit schema applies and whether audit
// recording runs for an edit.
type StageClass int

const (
	// ClassTriage: restricted field set, triage-note history and
	// tracked-field change history both recorded.
	ClassTriage StageClass = iota
	// ClassGovernance: full form including scoring; history shown but
	// not generated.
	ClassGovernance
	// ClassOther: full form, no audit behavior.
	ClassOther
)

func (c StageClass) String() string {
	switch c {
	case ClassTriage:
		return "triage"
	case ClassGovernance:
		return "governance"
	default:
		return "other"
	}
}

func ClassifyStage(stage string) StageClass {
	switch stage {
	case models.StagePendingReview, models.StageTriage:
		return ClassTriage
	case models.StageGovernance:
		return ClassGovernance
	default:
		return ClassOther
	}
}

// trackedFields is the set audited by the field-change recorder, in
// form order.
var trackedFields = []string{
	"title", "description", "department", "stage", "request_type", "priority",
}

var fieldLabels = map[string]string{
	"title":        "Title",
	"description":  "Description",
	"department":   "Department",
	"stage":        "Stage",
	"request_type": "Request Type",
	"priority":     "Priority",
	"triage_notes": "Triage Notes",
}

// FieldLabel returns the declared form label for a field, else the
// field name with underscores replaced by spaces and title-cased.
func FieldLabel(name string) string {
	if l, ok := fieldLabels[name]; ok {
		return l
	}
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
