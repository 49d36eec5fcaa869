package models

import "time"

// Stage values a request can hold. There is no enforced transition
// graph: the edit form may write any of these.
const (
	StagePendingReview   = "Pending Review"
	StageTriage          = "Under Review - Triage"
	StageGovernance      = "Under Review - Governance"
	StageFinalGovernance = "Under Review - Final Governance"
	StageApproved        = "Approved"
	StageRejected        = "Rejected"
	StageArchived        = "Archived"
)

const (
	TypeNotYetDecided      = "Not Yet Decided"
	TypeProcessImprovement = "Process Improvement"
	TypeITGovernance       = "IT Governance"
	TypeAIGovernance       = "AI Governance"
	TypeERPGovernance      = "ERP Governance"
)

const (
	PriorityLow    = "Low"
	PriorityNormal = "Normal"
	PriorityHigh   = "High"
	PriorityTop    = "Top"
)

var Stages = []string{
	StagePendingReview, StageTriage, StageGovernance,
	StageFinalGovernance, StageApproved, StageRejected, StageArchived,
}

var RequestTypes = []string{
	TypeNotYetDecided, TypeProcessImprovement, TypeITGovernance,
	TypeAIGovernance, TypeERPGovernance,
}

var Priorities = []string{PriorityLow, PriorityNormal, PriorityHigh, PriorityTop}

func ValidStage(s string) bool       { return contains(Stages, s) }
func ValidRequestType(s string) bool { return contains(RequestTypes, s) }
func ValidPriority(s string) bool    { return contains(Priorities, s) }

func contains(vals []string, s string) bool {
	for _, v := range vals {
		if v == s {
			return true
		}
	}
	return false
}

// Request is the central entity. RequestID is the stable human-facing
// identifier: 5 digits, zero-padded, assigned once at first persistence.
type Request struct {
	ID          string `json:"id"`
	RequestID   string `json:"requestId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Department  string `json:"department"`
	Stage       string `json:"stage"`
	RequestType string `json:"requestType"`
	Priority    string `json:"priority"`
	TriageNotes string `json:"triageNotes"`

	// Governance scoring block.
	ScoringNotes            string   `json:"scoringNotes"`
	FinalPriority           *int     `json:"finalPriority"`
	FinalScore              *float64 `json:"finalScore"`
	StrategicAlignment      *int     `json:"strategicAlignment"`
	CostBenefit             *int     `json:"costBenefit"`
	UserImpact              *int     `json:"userImpact"`
	EaseOfImplementation    *int     `json:"easeOfImplementation"`
	VendorReputationSupport *int     `json:"vendorReputationSupport"`
	SecurityCompliance      *int     `json:"securityCompliance"`
	StudentCentered         *int     `json:"studentCentered"`

	CreatedBy      string    `json:"createdBy"`
	CreatedByName  string    `json:"createdByName,omitempty"`
	CreatedByEmail string    `json:"createdByEmail,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment metadata; the bytes themselves live in the file store
// under FileKey.
type Attachment struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"requestId"`
	FileKey      string    `json:"-"`
	FileName     string    `json:"fileName"`
	Size         int64     `json:"size"`
	UploadedBy   string    `json:"uploadedBy"`
	UploaderName string    `json:"uploaderName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TriageNoteHistory is an append-only snapshot of the full triage-notes
// text at the time of an edit. Never mutated or deleted.
type TriageNoteHistory struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"requestId"`
	Notes      string    `json:"notes"`
	Author     string    `json:"author"`
	AuthorName string    `json:"authorName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ChangeHistoryEntry is an append-only record of one tracked field's
// transition. Old and new values are truncated to 200 characters.
type ChangeHistoryEntry struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"requestId"`
	FieldName  string    `json:"fieldName"`
	OldValue   string    `json:"oldValue"`
	NewValue   string    `json:"newValue"`
	Author     string    `json:"author"`
	AuthorName string    `json:"authorName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
