package postgres

import (
	"context"

	"github.com/CC-PatrickC/MyGovRemaster/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AttachmentRepo struct{ db *pgxpool.Pool }

func NewAttachmentRepo(db *pgxpool.Pool) *AttachmentRepo { return &AttachmentRepo{db: db} }

func (r *AttachmentRepo) ListByRequest(ctx context.Context, requestID string) ([]models.Attachment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.request_id, a.file_key, a.file_name, a.size_bytes,
		       a.uploaded_by, COALESCE(u.name, ''), a.created_at
		FROM attachments a
		LEFT JOIN users u ON u.id = a.uploaded_by
		WHERE a.request_id = $1
		ORDER BY a.created_at DESC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.RequestID, &a.FileKey, &a.FileName, &a.Size,
			&a.UploadedBy, &a.UploaderName, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AttachmentRepo) CountByRequest(ctx context.Context, requestID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM attachments WHERE request_id = $1`, requestID,
	).Scan(&n)
	return n, err
}

func (r *AttachmentRepo) Get(ctx context.Context, id string) (*models.Attachment, error) {
	var a models.Attachment
	err := r.db.QueryRow(ctx, `
		SELECT a.id, a.request_id, a.file_key, a.file_name, a.size_bytes,
		       a.uploaded_by, COALESCE(u.name, ''), a.created_at
		FROM attachments a
		LEFT JOIN users u ON u.id = a.uploaded_by
		WHERE a.id = $1
	`, id).Scan(&a.ID, &a.RequestID, &a.FileKey, &a.FileName, &a.Size,
		&a.UploadedBy, &a.UploaderName, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *AttachmentRepo) Create(ctx context.Context, a *models.Attachment) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO attachments (request_id, file_key, file_name, size_bytes, uploaded_by)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at
	`, a.RequestID, a.FileKey, a.FileName, a.Size, a.UploadedBy).Scan(&a.ID, &a.CreatedAt)
}

func (r *AttachmentRepo) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
