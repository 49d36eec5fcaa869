package postgres

import (
	"context"

	"github.com/CC-PatrickC/MyGovRemaster/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type HistoryRepo struct{ db *pgxpool.Pool }

func NewHistoryRepo(db *pgxpool.Pool) *HistoryRepo { return &HistoryRepo{db: db} }

// NotesByRequest returns triage-note snapshots, newest first.
func (r *HistoryRepo) NotesByRequest(ctx context.Context, requestID string) ([]models.TriageNoteHistory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT h.id, h.request_id, h.notes, h.author, COALESCE(u.name, ''), h.created_at
		FROM triage_note_history h
		LEFT JOIN users u ON u.id = h.author
		WHERE h.request_id = $1
		ORDER BY h.created_at DESC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TriageNoteHistory
	for rows.Next() {
		var h models.TriageNoteHistory
		if err := rows.Scan(&h.ID, &h.RequestID, &h.Notes, &h.Author, &h.AuthorName, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ChangesByRequest returns tracked-field change entries, newest first.
func (r *HistoryRepo) ChangesByRequest(ctx context.Context, requestID string) ([]models.ChangeHistoryEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT h.id, h.request_id, h.field_name, h.old_value, h.new_value,
		       h.author, COALESCE(u.name, ''), h.created_at
		FROM change_history h
		LEFT JOIN users u ON u.id = h.author
		WHERE h.request_id = $1
		ORDER BY h.created_at DESC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChangeHistoryEntry
	for rows.Next() {
		var h models.ChangeHistoryEntry
		if err := rows.Scan(&h.ID, &h.RequestID, &h.FieldName, &h.OldValue, &h.NewValue,
			&h.Author, &h.AuthorName, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *HistoryRepo) HasNoteSnapshot(ctx context.Context, requestID, text string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM triage_note_history WHERE request_id = $1 AND notes = $2
		)
	`, requestID, text).Scan(&exists)
	return exists, err
}
