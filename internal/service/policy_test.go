package service

import (
	"testing"

	"github.com/CC-PatrickC/MyGovRemaster/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStage(t *testing.T) {
	tests := []struct {
		stage string
		want  StageClass
	}{
		{models.StagePendingReview, ClassTriage},
		{models.StageTriage, ClassTriage},
		{models.StageGovernance, ClassGovernance},
		{models.StageFinalGovernance, ClassOther},
		{models.StageApproved, ClassOther},
		{models.StageRejected, ClassOther},
		{models.StageArchived, ClassOther},
		{"", ClassOther},
		{"bogus", ClassOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyStage(tt.stage), "stage %q", tt.stage)
	}
}

func TestStageClassString(t *testing.T) {
	assert.Equal(t, "triage", ClassTriage.String())
	assert.Equal(t, "governance", ClassGovernance.String())
	assert.Equal(t, "other", ClassOther.String())
}

func TestFieldLabel(t *testing.T) {
	// Declared labels win.
	assert.Equal(t, "Title", FieldLabel("title"))
	assert.Equal(t, "Request Type", FieldLabel("request_type"))
	assert.Equal(t, "Triage Notes", FieldLabel("triage_notes"))

	// Undeclared fields fall back to underscores-to-spaces, title-cased.
	assert.Equal(t, "Scoring Notes", FieldLabel("scoring_notes"))
	assert.Equal(t, "Final Score", FieldLabel("final_score"))
	assert.Equal(t, "Foo", FieldLabel("foo"))
}
