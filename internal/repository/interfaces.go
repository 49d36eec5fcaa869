package repository

import (
	"context"

	"github.com/CC-PatrickC/MyGovRemaster/internal/models"
)

type RequestRepository interface {
	List(ctx context.Context, f RequestFilter) ([]models.Request, int, error)
	ListByStages(ctx context.Context, stages []string) ([]models.Request, error)
	Get(ctx context.Context, id string) (*models.Request, error)
	// Create persists a new request and assigns its 5-digit request_id.
	Create(ctx context.Context, r *models.Request) error
	// Update applies the field values of r plus any history rows in a
	// single transaction.
	Update(ctx context.Context, r *models.Request, note *models.TriageNoteHistory, changes []models.ChangeHistoryEntry) error
}

type AttachmentRepository interface {
	ListByRequest(ctx context.Context, requestID string) ([]models.Attachment, error)
	CountByRequest(ctx context.Context, requestID string) (int, error)
	Get(ctx context.Context, id string) (*models.Attachment, error)
	Create(ctx context.Context, a *models.Attachment) error
	Delete(ctx context.Context, id string) error
}

type HistoryRepository interface {
	NotesByRequest(ctx context.Context, requestID string) ([]models.TriageNoteHistory, error)
	ChangesByRequest(ctx context.Context, requestID string) ([]models.ChangeHistoryEntry, error)
	// HasNoteSnapshot reports whether a note-history row with exactly
	// this text already exists for the request.
	HasNoteSnapshot(ctx context.Context, requestID, text string) (bool, error)
}

type UserRepository interface {
	Create(ctx context.Context, email, name, passwordHash string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, string /*passwordHash*/, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, q string, admin *bool, active *bool, limit, offset int) ([]models.User, int, error)
	SetAdmin(ctx context.Context, id string, admin bool) (*models.User, error)
	SetGroups(ctx context.Context, id string, groups []string) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool) (*models.User, error)
	UpdateBasic(ctx context.Context, id, name string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}
