package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/CC-PatrickC/MyGovRemaster/internal/models"
	"github.com/CC-PatrickC/MyGovRemaster/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// In-memory fakes
// -----------------------------------------------------------------------------

type fakeStore struct {
	requests    map[string]*models.Request
	seq         int
	notes       []models.TriageNoteHistory
	changes     []models.ChangeHistoryEntry
	attachments map[string]*models.Attachment
	attSeq      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		requests:    map[string]*models.Request{},
		attachments: map[string]*models.Attachment{},
	}
}

func (f *fakeStore) List(ctx context.Context, _ repository.RequestFilter) ([]models.Request, int, error) {
	var out []models.Request
	for _, r := range f.requests {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (f *fakeStore) ListByStages(ctx context.Context, stages []string) ([]models.Request, error) {
	var out []models.Request
	for _, r := range f.requests {
		for _, s := range stages {
			if r.Stage == s {
				out = append(out, *r)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*models.Request, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) Create(ctx context.Context, r *models.Request) error {
	f.seq++
	r.ID = fmt.Sprintf("req-%d", f.seq)
	r.RequestID = fmt.Sprintf("%05d", f.seq)
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	f.requests[r.ID] = &cp
	return nil
}

func (f *fakeStore) Update(ctx context.Context, r *models.Request, note *models.TriageNoteHistory, changes []models.ChangeHistoryEntry) error {
	if _, ok := f.requests[r.ID]; !ok {
		return errors.New("missing row")
	}
	r.UpdatedAt = time.Now()
	cp := *r
	f.requests[r.ID] = &cp

	if note != nil {
		note.ID = fmt.Sprintf("note-%d", len(f.notes)+1)
		note.CreatedAt = time.Now()
		f.notes = append(f.notes, *note)
	}
	for i := range changes {
		changes[i].ID = fmt.Sprintf("chg-%d", len(f.changes)+1)
		changes[i].CreatedAt = time.Now()
		f.changes = append(f.changes, changes[i])
	}
	return nil
}

func (f *fakeStore) ListByRequest(ctx context.Context, requestID string) ([]models.Attachment, error) {
	var out []models.Attachment
	for _, a := range f.attachments {
		if a.RequestID == requestID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) CountByRequest(ctx context.Context, requestID string) (int, error) {
	n := 0
	for _, a := range f.attachments {
		if a.RequestID == requestID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	a, ok := f.attachments[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) CreateAttachment(ctx context.Context, a *models.Attachment) error {
	f.attSeq++
	a.ID = fmt.Sprintf("att-%d", f.attSeq)
	a.CreatedAt = time.Now()
	cp := *a
	f.attachments[a.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteAttachment(ctx context.Context, id string) error {
	if _, ok := f.attachments[id]; !ok {
		return errors.New("missing row")
	}
	delete(f.attachments, id)
	return nil
}

func (f *fakeStore) NotesByRequest(ctx context.Context, requestID string) ([]models.TriageNoteHistory, error) {
	var out []models.TriageNoteHistory
	for i := len(f.notes) - 1; i >= 0; i-- {
		if f.notes[i].RequestID == requestID {
			out = append(out, f.notes[i])
		}
	}
	return out, nil
}

func (f *fakeStore) ChangesByRequest(ctx context.Context, requestID string) ([]models.ChangeHistoryEntry, error) {
	var out []models.ChangeHistoryEntry
	for i := len(f.changes) - 1; i >= 0; i-- {
		if f.changes[i].RequestID == requestID {
			out = append(out, f.changes[i])
		}
	}
	return out, nil
}

func (f *fakeStore) HasNoteSnapshot(ctx context.Context, requestID, text string) (bool, error) {
	for _, n := range f.notes {
		if n.RequestID == requestID && n.Notes == text {
			return true, nil
		}
	}
	return false, nil
}

// attachmentRepoAdapter renames the attachment methods onto the
// repository interface without colliding with the request methods.
type attachmentRepoAdapter struct{ *fakeStore }

func (a attachmentRepoAdapter) Get(ctx context.Context, id string) (*models.Attachment, error) {
	return a.GetAttachment(ctx, id)
}
func (a attachmentRepoAdapter) Create(ctx context.Context, att *models.Attachment) error {
	return a.CreateAttachment(ctx, att)
}
func (a attachmentRepoAdapter) Delete(ctx context.Context, id string) error {
	return a.DeleteAttachment(ctx, id)
}

type fakeFiles struct {
	blobs     map[string][]byte
	removeErr error
}

func newFakeFiles() *fakeFiles { return &fakeFiles{blobs: map[string][]byte{}} }

func (f *fakeFiles) Save(key string, src io.Reader) (int64, error) {
	b, err := io.ReadAll(src)
	if err != nil {
		return 0, err
	}
	f.blobs[key] = b
	return int64(len(b)), nil
}

type nopReadSeekCloser struct{ *bytes.Reader }

func (nopReadSeekCloser) Close() error { return nil }

func (f *fakeFiles) Open(key string) (io.ReadSeekCloser, error) {
	b, ok := f.blobs[key]
	if !ok {
		return nil, errors.New("no such blob")
	}
	return nopReadSeekCloser{bytes.NewReader(b)}, nil
}

func (f *fakeFiles) Remove(key string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.blobs, key)
	return nil
}

// -----------------------------------------------------------------------------
// Test fixtures
// -----------------------------------------------------------------------------

var (
	admin     = &models.User{ID: "u-admin", Name: "Ada Admin", Email: "ada@example.edu", IsAdmin: true, Active: true}
	triager   = &models.User{ID: "u-triage", Name: "Tom Triage", Email: "tom@example.edu", Groups: []string{models.GroupTriage}, Active: true}
	submitter = &models.User{ID: "u-sub", Name: "Sam Submitter", Email: "sam@example.edu", Active: true}
)

func newTestService(t *testing.T) (*WorkflowService, *fakeStore, *fakeFiles) {
	t.Helper()
	store := newFakeStore()
	files := newFakeFiles()
	svc := NewWorkflowService(store, attachmentRepoAdapter{store}, store, files, zerolog.Nop())
	return svc, store, files
}

func seedRequest(t *testing.T, svc *WorkflowService, stage string) *models.Request {
	t.Helper()
	req, err := svc.CreateRequest(context.Background(), SubmitRequest{
		Title:      "Replace aging lab computers",
		Department: "IT",
	}, submitter)
	require.NoError(t, err)
	if stage != models.StagePendingReview {
		req.Stage = stage
		require.NoError(t, svc.requests.Update(context.Background(), req, nil, nil))
	}
	return req
}

func triagePayload(req *models.Request, overrides map[string]any) []byte {
	m := map[string]any{
		"title":        req.Title,
		"description":  req.Description,
		"department":   req.Department,
		"stage":        req.Stage,
		"request_type": req.RequestType,
		"priority":     req.Priority,
		"triage_notes": req.TriageNotes,
	}
	for k, v := range overrides {
		m[k] = v
	}
	b, _ := json.Marshal(m)
	return b
}

// -----------------------------------------------------------------------------
// CreateRequest
// -----------------------------------------------------------------------------

func TestCreateRequestAssignsSequentialIDs(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateRequest(ctx, SubmitRequest{Title: "one"}, submitter)
	require.NoError(t, err)
	second, err := svc.CreateRequest(ctx, SubmitRequest{Title: "two"}, submitter)
	require.NoError(t, err)

	assert.Equal(t, "00001", first.RequestID)
	assert.Equal(t, "00002", second.RequestID)
	assert.Equal(t, models.StagePendingReview, first.Stage)
	assert.Equal(t, models.TypeNotYetDecided, first.RequestType)
	assert.Equal(t, models.PriorityNormal, first.Priority)
	assert.Equal(t, submitter.ID, first.CreatedBy)
}

func TestCreateRequestRequiresTitle(t *testing.T) {
	svc, store, _ := newTestService(t)

	_, err := svc.CreateRequest(context.Background(), SubmitRequest{Title: "   "}, submitter)
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "title")
	assert.Empty(t, store.requests)
}

// -----------------------------------------------------------------------------
// SubmitEdit: triage-note recorder
// -----------------------------------------------------------------------------

func TestSubmitEditRecordsNoteHistory(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	req := seedRequest(t, svc, models.StagePendingReview)

	res, err := svc.SubmitEdit(ctx, req.ID, triagePayload(req, map[string]any{"triage_notes": "foo"}), triager)
	require.NoError(t, err)

	require.NotNil(t, res.NoteHistory)
	assert.Equal(t, "foo", res.NoteHistory.Notes)
	assert.Equal(t, triager.ID, res.NoteHistory.Author)
	require.Len(t, store.notes, 1)

	// Unchanged notes with an existing snapshot: nothing new recorded.
	req2, _ := store.Get(ctx, req.ID)
	res, err = svc.SubmitEdit(ctx, req2.ID, triagePayload(req2, nil), triager)
	require.NoError(t, err)
	assert.Nil(t, res.NoteHistory)
	assert.Len(t, store.notes, 1)
}

func TestSubmitEditBackfillsMissingNoteSnapshot(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	req := seedRequest(t, svc, models.StageTriage)

	// Notes already persisted without ever passing through the edit
	// path, so no history row exists for the text.
	req.TriageNotes = "foo"
	require.NoError(t, store.Update(ctx, req, nil, nil))
	require.Empty(t, store.notes)

	res, err := svc.SubmitEdit(ctx, req.ID, triagePayload(req, map[string]any{"triage_notes": "foo"}), triager)
	require.NoError(t, err)
	require.NotNil(t, res.NoteHistory)
	assert.Equal(t, "foo", res.NoteHistory.Notes)
	assert.Len(t, store.notes, 1)
}

func TestSubmitEditEmptyNotesRecordNothing(t *testing.T) {
	svc, store, _ := newTestService(t)
	req := seedRequest(t, svc, models.StagePendingReview)

	res, err := svc.SubmitEdit(context.Background(), req.ID, triagePayload(req, map[string]any{"triage_notes": "   "}), triager)
	require.NoError(t, err)
	assert.Nil(t, res.NoteHistory)
	assert.Empty(t, store.notes)
}

// -----------------------------------------------------------------------------
// SubmitEdit: field-change recorder
// -----------------------------------------------------------------------------

func TestSubmitEditRecordsFieldChanges(t *testing.T) {
	svc, store, _ := newTestService(t)
	req := seedRequest(t, svc, models.StagePendingReview)

	res, err := svc.SubmitEdit(context.Background(), req.ID, triagePayload(req, map[string]any{"priority": models.PriorityHigh}), triager)
	require.NoError(t, err)

	require.Len(t, res.Changes, 1)
	assert.Equal(t, "Priority", res.Changes[0].FieldName)
	assert.Equal(t, models.PriorityNormal, res.Changes[0].OldValue)
	assert.Equal(t, models.PriorityHigh, res.Changes[0].NewValue)
	assert.Equal(t, triager.ID, res.Changes[0].Author)
	assert.Len(t, store.changes, 1)

	assert.Equal(t, models.PriorityHigh, res.Request.Priority)
}

func TestSubmitEditNoChangeNoEntries(t *testing.T) {
	svc, store, _ := newTestService(t)
	req := seedRequest(t, svc, models.StageTriage)

	res, err := svc.SubmitEdit(context.Background(), req.ID, triagePayload(req, nil), triager)
	require.NoError(t, err)
	assert.Empty(t, res.Changes)
	assert.Empty(t, store.changes)
}

func TestSubmitEditGovernanceGeneratesNoAudit(t *testing.T) {
	svc, store, _ := newTestService(t)
	req := seedRequest(t, svc, models.StageGovernance)

	payload := triagePayload(req, map[string]any{
		"title":         "Completely new title",
		"scoring_notes": "strong candidate",
		"user_impact":   4,
	})
	res, err := svc.SubmitEdit(context.Background(), req.ID, payload, admin)
	require.NoError(t, err)

	assert.Empty(t, res.Changes)
	assert.Nil(t, res.NoteHistory)
	assert.Empty(t, store.changes)
	assert.Empty(t, store.notes)

	assert.Equal(t, "Completely new title", res.Request.Title)
	assert.Equal(t, "strong candidate", res.Request.ScoringNotes)
	require.NotNil(t, res.Request.UserImpact)
	assert.Equal(t, 4, *res.Request.UserImpact)
}

func TestSubmitEditValidatesSubScores(t *testing.T) {
	svc, store, _ := newTestService(t)
	req := seedRequest(t, svc, models.StageApproved)

	payload := triagePayload(req, map[string]any{"cost_benefit": 6})
	_, err := svc.SubmitEdit(context.Background(), req.ID, payload, admin)
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "cost_benefit")

	// No mutation on validation failure.
	stored, _ := store.Get(context.Background(), req.ID)
	assert.Nil(t, stored.CostBenefit)
}

func TestSubmitEditRejectsInvalidStageChoice(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := seedRequest(t, svc, models.StagePendingReview)

	payload := triagePayload(req, map[string]any{"stage": "Totally Made Up"})
	_, err := svc.SubmitEdit(context.Background(), req.ID, payload, triager)
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "stage")
}

func TestSubmitEditUnknownRequest(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.SubmitEdit(context.Background(), "nope", []byte(`{}`), triager)
	assert.True(t, IsNotFound(err))
}

// -----------------------------------------------------------------------------
// ArchiveRequest
// -----------------------------------------------------------------------------

func TestArchiveRequestDeniedWithoutTriageAuthority(t *testing.T) {
	svc, store, _ := newTestService(t)
	req := seedRequest(t, svc, models.StageTriage)

	_, err := svc.ArchiveRequest(context.Background(), req.ID, "stale", submitter)
	assert.True(t, IsPermissionDenied(err))

	stored, _ := store.Get(context.Background(), req.ID)
	assert.Equal(t, models.StageTriage, stored.Stage)
	assert.Empty(t, store.changes)
}

func TestArchiveRequestRequiresReason(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := seedRequest(t, svc, models.StageTriage)

	_, err := svc.ArchiveRequest(context.Background(), req.ID, "   ", triager)
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "reason")
}

func TestArchiveRequest(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	req := seedRequest(t, svc, models.StageTriage)

	got, err := svc.ArchiveRequest(ctx, req.ID, "duplicate of 00007", triager)
	require.NoError(t, err)

	assert.Equal(t, models.StageArchived, got.Stage)
	assert.Equal(t, "[Archived by Tom Triage]: duplicate of 00007", got.TriageNotes)

	require.Len(t, store.changes, 1)
	assert.Equal(t, "Stage", store.changes[0].FieldName)
	assert.Equal(t, models.StageTriage, store.changes[0].OldValue)
	assert.Equal(t, models.StageArchived, store.changes[0].NewValue)
	assert.Equal(t, triager.ID, store.changes[0].Author)
}

func TestArchiveRequestAppendsToExistingNotes(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	req := seedRequest(t, svc, models.StageTriage)
	req.TriageNotes = "earlier context"
	require.NoError(t, store.Update(ctx, req, nil, nil))

	got, err := svc.ArchiveRequest(ctx, req.ID, "no longer needed", admin)
	require.NoError(t, err)
	assert.Equal(t, "earlier context\n\n[Archived by Ada Admin]: no longer needed", got.TriageNotes)
}

func TestArchiveRequestUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.ArchiveRequest(context.Background(), "nope", "reason", admin)
	assert.True(t, IsNotFound(err))
}

// -----------------------------------------------------------------------------
// Attachments
// -----------------------------------------------------------------------------

func upload(name, content string) FileUpload {
	return FileUpload{Name: name, Size: int64(len(content)), Reader: strings.NewReader(content)}
}

func TestUploadAttachment(t *testing.T) {
	svc, store, files := newTestService(t)
	req := seedRequest(t, svc, models.StagePendingReview)

	a, err := svc.UploadAttachment(context.Background(), req.ID, upload("quote.pdf", "pdf bytes"), submitter)
	require.NoError(t, err)

	assert.Equal(t, "quote.pdf", a.FileName)
	assert.Equal(t, int64(len("pdf bytes")), a.Size)
	assert.Equal(t, submitter.ID, a.UploadedBy)
	assert.True(t, strings.HasSuffix(a.FileKey, ".pdf"))
	assert.Contains(t, files.blobs, a.FileKey)
	assert.Len(t, store.attachments, 1)
}

func TestUploadAttachmentMissingFile(t *testing.T) {
	svc, store, _ := newTestService(t)
	req := seedRequest(t, svc, models.StagePendingReview)

	_, err := svc.UploadAttachment(context.Background(), req.ID, FileUpload{}, submitter)
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "file")
	assert.Empty(t, store.attachments)
}

func TestUploadAttachmentSizeLimit(t *testing.T) {
	svc, store, files := newTestService(t)
	req := seedRequest(t, svc, models.StagePendingReview)

	big := FileUpload{Name: "huge.bin", Size: 11 << 20, Reader: strings.NewReader("irrelevant")}
	_, err := svc.UploadAttachment(context.Background(), req.ID, big, submitter)
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "size exceeds limit", ve.Fields["file"])
	assert.Empty(t, store.attachments)
	assert.Empty(t, files.blobs)
}

func TestUploadAttachmentMaxCount(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	req := seedRequest(t, svc, models.StagePendingReview)

	for i := 0; i < maxAttachmentsPerRequest; i++ {
		_, err := svc.UploadAttachment(ctx, req.ID, upload(fmt.Sprintf("f%d.txt", i), "x"), submitter)
		require.NoError(t, err)
	}

	_, err := svc.UploadAttachment(ctx, req.ID, upload("one-too-many.txt", "x"), submitter)
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "file")
	assert.Len(t, store.attachments, maxAttachmentsPerRequest)
}

func TestDeleteAttachmentDeniedForStranger(t *testing.T) {
	svc, store, files := newTestService(t)
	ctx := context.Background()
	req := seedRequest(t, svc, models.StagePendingReview)
	a, err := svc.UploadAttachment(ctx, req.ID, upload("doc.txt", "hello"), submitter)
	require.NoError(t, err)

	err = svc.DeleteAttachment(ctx, a.ID, triager)
	assert.True(t, IsPermissionDenied(err))
	assert.Len(t, store.attachments, 1)
	assert.Contains(t, files.blobs, a.FileKey)
}

func TestDeleteAttachmentByUploader(t *testing.T) {
	svc, store, files := newTestService(t)
	ctx := context.Background()
	req := seedRequest(t, svc, models.StagePendingReview)
	a, err := svc.UploadAttachment(ctx, req.ID, upload("doc.txt", "hello"), submitter)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAttachment(ctx, a.ID, submitter))
	assert.Empty(t, store.attachments)
	assert.NotContains(t, files.blobs, a.FileKey)
}

func TestDeleteAttachmentRecordWinsOverBlob(t *testing.T) {
	svc, store, files := newTestService(t)
	ctx := context.Background()
	req := seedRequest(t, svc, models.StagePendingReview)
	a, err := svc.UploadAttachment(ctx, req.ID, upload("doc.txt", "hello"), submitter)
	require.NoError(t, err)

	// Blob deletion failing must not block record deletion.
	files.removeErr = errors.New("disk on fire")
	require.NoError(t, svc.DeleteAttachment(ctx, a.ID, admin))
	assert.Empty(t, store.attachments)
}

func TestDeleteAttachmentUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.DeleteAttachment(context.Background(), "nope", admin)
	assert.True(t, IsNotFound(err))
}

// -----------------------------------------------------------------------------
// Read paths
// -----------------------------------------------------------------------------

func TestGetRequestDetail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	req := seedRequest(t, svc, models.StagePendingReview)

	_, err := svc.SubmitEdit(ctx, req.ID, triagePayload(req, map[string]any{
		"priority":     models.PriorityTop,
		"triage_notes": "checking vendor options",
	}), triager)
	require.NoError(t, err)

	detail, err := svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "triage", detail.StageClass)
	require.Len(t, detail.NoteHistory, 1)
	require.Len(t, detail.ChangeHistory, 1)
	assert.Equal(t, "Priority", detail.ChangeHistory[0].FieldName)
}

func TestDashboardGatesTriageSection(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	seedRequest(t, svc, models.StagePendingReview)
	seedRequest(t, svc, models.StageGovernance)
	seedRequest(t, svc, models.StageFinalGovernance)

	d, err := svc.Dashboard(ctx, submitter)
	require.NoError(t, err)
	assert.False(t, d.CanViewTriage)
	assert.Empty(t, d.TriageRequests)
	assert.Len(t, d.GovernanceRequests, 1)
	assert.Len(t, d.FinalGovernanceRequests, 1)

	d, err = svc.Dashboard(ctx, triager)
	require.NoError(t, err)
	assert.True(t, d.CanViewTriage)
	assert.Len(t, d.TriageRequests, 1)
}
