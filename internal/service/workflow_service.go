package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/CC-PatrickC/MyGovRemaster/internal/filestore"
	"github.com/CC-PatrickC/MyGovRemaster/internal/models"
	"github.com/CC-PatrickC/MyGovRemaster/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	maxAttachmentSize        = 10 << 20 // 10 MiB
	maxAttachmentsPerRequest = 5
)

// WorkflowService orchestrates request edits, archiving and attachment
// handling, and owns the audit recording rules.
type WorkflowService struct {
	requests    repository.RequestRepository
	attachments repository.AttachmentRepository
	history     repository.HistoryRepository
	files       filestore.Store
	validate    *validator.Validate
	log         zerolog.Logger
}

func NewWorkflowService(
	requests repository.RequestRepository,
	attachments repository.AttachmentRepository,
	history repository.HistoryRepository,
	files filestore.Store,
	log zerolog.Logger,
) *WorkflowService {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("stage", func(fl validator.FieldLevel) bool {
		return models.ValidStage(fl.Field().String())
	})
	_ = v.RegisterValidation("request_type", func(fl validator.FieldLevel) bool {
		return models.ValidRequestType(fl.Field().String())
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return models.ValidPriority(fl.Field().String())
	})

	return &WorkflowService{
		requests:    requests,
		attachments: attachments,
		history:     history,
		files:       files,
		validate:    v,
		log:         log,
	}
}

// -----------------------------------------------------------------------------
// Edit schemas
// -----------------------------------------------------------------------------

// TriageEdit is the restricted schema for triage-classified requests.
type TriageEdit struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Department  string `json:"department" validate:"max=100"`
	Stage       string `json:"stage" validate:"required,stage"`
	RequestType string `json:"request_type" validate:"required,request_type"`
	Priority    string `json:"priority" validate:"required,priority"`
	TriageNotes string `json:"triage_notes"`
}

func (e *TriageEdit) trim() {
	e.Title = strings.TrimSpace(e.Title)
	e.Description = strings.TrimSpace(e.Description)
	e.Department = strings.TrimSpace(e.Department)
	e.Stage = strings.TrimSpace(e.Stage)
	e.RequestType = strings.TrimSpace(e.RequestType)
	e.Priority = strings.TrimSpace(e.Priority)
	e.TriageNotes = strings.TrimSpace(e.TriageNotes)
}

func (e *TriageEdit) snapshot() fieldSnapshot {
	return fieldSnapshot{
		"title":        e.Title,
		"description":  e.Description,
		"department":   e.Department,
		"stage":        e.Stage,
		"request_type": e.RequestType,
		"priority":     e.Priority,
	}
}

// FullEdit is the schema for everything else: all fields including the
// governance scoring block.
type FullEdit struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Department  string `json:"department" validate:"max=100"`
	Stage       string `json:"stage" validate:"required,stage"`
	RequestType string `json:"request_type" validate:"required,request_type"`
	Priority    string `json:"priority" validate:"required,priority"`

	ScoringNotes            string   `json:"scoring_notes"`
	FinalPriority           *int     `json:"final_priority" validate:"omitempty,min=0"`
	FinalScore              *float64 `json:"final_score"`
	StrategicAlignment      *int     `json:"strategic_alignment" validate:"omitempty,min=1,max=5"`
	CostBenefit             *int     `json:"cost_benefit" validate:"omitempty,min=1,max=5"`
	UserImpact              *int     `json:"user_impact" validate:"omitempty,min=1,max=5"`
	EaseOfImplementation    *int     `json:"ease_of_implementation" validate:"omitempty,min=1,max=5"`
	VendorReputationSupport *int     `json:"vendor_reputation_support" validate:"omitempty,min=1,max=5"`
	SecurityCompliance      *int     `json:"security_compliance" validate:"omitempty,min=1,max=5"`
	StudentCentered         *int     `json:"student_centered" validate:"omitempty,min=1,max=5"`
}

func (e *FullEdit) trim() {
	e.Title = strings.TrimSpace(e.Title)
	e.Description = strings.TrimSpace(e.Description)
	e.Department = strings.TrimSpace(e.Department)
	e.Stage = strings.TrimSpace(e.Stage)
	e.RequestType = strings.TrimSpace(e.RequestType)
	e.Priority = strings.TrimSpace(e.Priority)
	e.ScoringNotes = strings.TrimSpace(e.ScoringNotes)
}

// -----------------------------------------------------------------------------
// SubmitEdit
// -----------------------------------------------------------------------------

type EditResult struct {
	Request     *models.Request            `json:"request"`
	NoteHistory *models.TriageNoteHistory  `json:"noteHistory,omitempty"`
	Changes     []models.ChangeHistoryEntry `json:"changes,omitempty"`
}

// SubmitEdit applies an edit submission to a request. The stage at the
// start of the edit selects the schema; triage-classified requests get
// triage-note history and tracked-field change history recorded against
// the pre-edit snapshot. All writes land in one transaction.
func (s *WorkflowService) SubmitEdit(ctx context.Context, id string, payload []byte, actor *models.User) (*EditResult, error) {
	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &NotFoundError{Entity: "request"}
	}

	class := ClassifyStage(req.Stage)

	// Snapshots must be taken before any field is applied: the diff
	// compares persisted state against the validated submission, never
	// against a re-read of already-mutated state.
	before := snapshotTracked(req)
	oldNotes := strings.TrimSpace(req.TriageNotes)

	var note *models.TriageNoteHistory
	var changes []models.ChangeHistoryEntry

	if class == ClassTriage {
		var in TriageEdit
		if err := decodeJSON(payload, &in); err != nil {
			return nil, err
		}
		in.trim()
		if err := s.check(&in); err != nil {
			return nil, err
		}

		if in.TriageNotes != "" {
			record := in.TriageNotes != oldNotes
			if !record {
				// Same text as the persisted notes: backfill a history
				// row only if none with this exact text exists yet.
				has, err := s.history.HasNoteSnapshot(ctx, req.ID, in.TriageNotes)
				if err != nil {
					return nil, err
				}
				record = !has
			}
			if record {
				note = &models.TriageNoteHistory{
					RequestID: req.ID,
					Notes:     in.TriageNotes,
					Author:    actor.ID,
				}
			}
		}

		req.Title = in.Title
		req.Description = in.Description
		req.Department = in.Department
		req.Stage = in.Stage
		req.RequestType = in.RequestType
		req.Priority = in.Priority
		req.TriageNotes = in.TriageNotes

		changes = diffTracked(req.ID, before, in.snapshot(), actor.ID)
	} else {
		var in FullEdit
		if err := decodeJSON(payload, &in); err != nil {
			return nil, err
		}
		in.trim()
		if err := s.check(&in); err != nil {
			return nil, err
		}

		req.Title = in.Title
		req.Description = in.Description
		req.Department = in.Department
		req.Stage = in.Stage
		req.RequestType = in.RequestType
		req.Priority = in.Priority
		req.ScoringNotes = in.ScoringNotes
		req.FinalPriority = in.FinalPriority
		req.FinalScore = in.FinalScore
		req.StrategicAlignment = in.StrategicAlignment
		req.CostBenefit = in.CostBenefit
		req.UserImpact = in.UserImpact
		req.EaseOfImplementation = in.EaseOfImplementation
		req.VendorReputationSupport = in.VendorReputationSupport
		req.SecurityCompliance = in.SecurityCompliance
		req.StudentCentered = in.StudentCentered
	}

	if err := s.requests.Update(ctx, req, note, changes); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("request", req.RequestID).
		Str("class", class.String()).
		Int("changes", len(changes)).
		Bool("noteHistory", note != nil).
		Msg("edit applied")

	return &EditResult{Request: req, NoteHistory: note, Changes: changes}, nil
}

// -----------------------------------------------------------------------------
// Submission + archive
// -----------------------------------------------------------------------------

type SubmitRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Department  string `json:"department" validate:"max=100"`
	RequestType string `json:"request_type" validate:"omitempty,request_type"`
	Priority    string `json:"priority" validate:"omitempty,priority"`
}

// CreateRequest persists a new request in Pending Review. The public
// 5-digit identifier is assigned by the repository at first save.
func (s *WorkflowService) CreateRequest(ctx context.Context, in SubmitRequest, actor *models.User) (*models.Request, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Department = strings.TrimSpace(in.Department)
	in.RequestType = strings.TrimSpace(in.RequestType)
	in.Priority = strings.TrimSpace(in.Priority)
	if err := s.check(in); err != nil {
		return nil, err
	}

	if in.RequestType == "" {
		in.RequestType = models.TypeNotYetDecided
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}

	req := &models.Request{
		Title:       in.Title,
		Description: in.Description,
		Department:  in.Department,
		Stage:       models.StagePendingReview,
		RequestType: in.RequestType,
		Priority:    in.Priority,
		CreatedBy:   actor.ID,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.log.Info().Str("request", req.RequestID).Str("by", actor.ID).Msg("request submitted")
	return req, nil
}

// ArchiveRequest sets the stage to Archived, records one change entry
// for the stage transition and appends a formatted line to the triage
// notes. Triage authority required; archiving has no reversal.
func (s *WorkflowService) ArchiveRequest(ctx context.Context, id, reason string, actor *models.User) (*models.Request, error) {
	if !actor.TriageAuthority() {
		return nil, &PermissionDeniedError{Op: "archive request"}
	}

	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &NotFoundError{Entity: "request"}
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fieldError("reason", "reason is required")
	}

	oldStage := req.Stage
	req.Stage = models.StageArchived

	entry := models.ChangeHistoryEntry{
		RequestID: req.ID,
		FieldName: FieldLabel("stage"),
		OldValue:  truncateValue(oldStage),
		NewValue:  models.StageArchived,
		Author:    actor.ID,
	}

	line := fmt.Sprintf("[Archived by %s]: %s", actor.DisplayName(), reason)
	if strings.TrimSpace(req.TriageNotes) != "" {
		req.TriageNotes = req.TriageNotes + "\n\n" + line
	} else {
		req.TriageNotes = line
	}

	if err := s.requests.Update(ctx, req, nil, []models.ChangeHistoryEntry{entry}); err != nil {
		return nil, err
	}

	s.log.Info().Str("request", req.RequestID).Str("by", actor.ID).Msg("request archived")
	return req, nil
}

// -----------------------------------------------------------------------------
// Attachments
// -----------------------------------------------------------------------------

type FileUpload struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// UploadAttachment stores the blob and its metadata row. At most 5
// attachments per request, each at most 10 MiB.
func (s *WorkflowService) UploadAttachment(ctx context.Context, requestID string, up FileUpload, actor *models.User) (*models.Attachment, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &NotFoundError{Entity: "request"}
	}

	if up.Reader == nil || strings.TrimSpace(up.Name) == "" {
		return nil, fieldError("file", "file is required")
	}
	if up.Size > maxAttachmentSize {
		return nil, fieldError("file", "size exceeds limit")
	}
	n, err := s.attachments.CountByRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if n >= maxAttachmentsPerRequest {
		return nil, fieldError("file", "max files reached")
	}

	key := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(up.Name)))
	written, err := s.files.Save(key, io.LimitReader(up.Reader, maxAttachmentSize+1))
	if err != nil {
		return nil, err
	}
	if written > maxAttachmentSize {
		_ = s.files.Remove(key)
		return nil, fieldError("file", "size exceeds limit")
	}

	a := &models.Attachment{
		RequestID:  req.ID,
		FileKey:    key,
		FileName:   filepath.Base(up.Name),
		Size:       written,
		UploadedBy: actor.ID,
	}
	if err := s.attachments.Create(ctx, a); err != nil {
		_ = s.files.Remove(key)
		return nil, err
	}
	return a, nil
}

// DeleteAttachment removes the blob (best effort) and then the
// metadata row. Only the original uploader or an administrator may
// delete; record deletion is authoritative.
func (s *WorkflowService) DeleteAttachment(ctx context.Context, id string, actor *models.User) error {
	a, err := s.attachments.Get(ctx, id)
	if err != nil {
		return err
	}
	if a == nil {
		return &NotFoundError{Entity: "attachment"}
	}
	if !actor.IsAdmin && a.UploadedBy != actor.ID {
		return &PermissionDeniedError{Op: "delete attachment"}
	}

	if err := s.files.Remove(a.FileKey); err != nil {
		s.log.Warn().Err(err).Str("attachment", a.ID).Msg("blob delete failed, removing record anyway")
	}
	return s.attachments.Delete(ctx, a.ID)
}

// OpenAttachment resolves metadata and opens the stored blob.
func (s *WorkflowService) OpenAttachment(ctx context.Context, id string) (*models.Attachment, io.ReadSeekCloser, error) {
	a, err := s.attachments.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if a == nil {
		return nil, nil, &NotFoundError{Entity: "attachment"}
	}
	f, err := s.files.Open(a.FileKey)
	if err != nil {
		return nil, nil, err
	}
	return a, f, nil
}

// -----------------------------------------------------------------------------
// Read paths
// -----------------------------------------------------------------------------

type RequestDetail struct {
	Request       models.Request              `json:"request"`
	StageClass    string                      `json:"stageClass"`
	NoteHistory   []models.TriageNoteHistory  `json:"noteHistory"`
	ChangeHistory []models.ChangeHistoryEntry `json:"changeHistory"`
}

// GetRequest loads a request together with its attachments and both
// history lists (newest first).
func (s *WorkflowService) GetRequest(ctx context.Context, id string) (*RequestDetail, error) {
	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &NotFoundError{Entity: "request"}
	}

	atts, err := s.attachments.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	req.Attachments = atts

	notes, err := s.history.NotesByRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	changes, err := s.history.ChangesByRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	return &RequestDetail{
		Request:       *req,
		StageClass:    ClassifyStage(req.Stage).String(),
		NoteHistory:   notes,
		ChangeHistory: changes,
	}, nil
}

type Dashboard struct {
	CanViewTriage           bool             `json:"canViewTriage"`
	TriageRequests          []models.Request `json:"triageRequests,omitempty"`
	GovernanceRequests      []models.Request `json:"governanceRequests"`
	FinalGovernanceRequests []models.Request `json:"finalGovernanceRequests"`
}

// Dashboard mirrors the home view: the triage section is visible only
// to users with triage authority; the governance sections to everyone.
func (s *WorkflowService) Dashboard(ctx context.Context, actor *models.User) (*Dashboard, error) {
	d := &Dashboard{CanViewTriage: actor.TriageAuthority()}

	if d.CanViewTriage {
		triage, err := s.requests.ListByStages(ctx, []string{models.StagePendingReview, models.StageTriage})
		if err != nil {
			return nil, err
		}
		d.TriageRequests = triage
	}

	gov, err := s.requests.ListByStages(ctx, []string{models.StageGovernance})
	if err != nil {
		return nil, err
	}
	d.GovernanceRequests = gov

	final, err := s.requests.ListByStages(ctx, []string{models.StageFinalGovernance})
	if err != nil {
		return nil, err
	}
	d.FinalGovernanceRequests = final

	return d, nil
}

// -----------------------------------------------------------------------------
// Decoding + validation helpers
// -----------------------------------------------------------------------------

func decodeJSON(payload []byte, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fieldError("body", "invalid json")
	}
	return nil
}

func (s *WorkflowService) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = violationMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "stage", "request_type", "priority":
		return "invalid choice"
	default:
		return "invalid value"
	}
}
