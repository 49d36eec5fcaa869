package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/CC-PatrickC/MyGovRemaster/internal/models"
	"github.com/CC-PatrickC/MyGovRemaster/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RequestRepo struct{ db *pgxpool.Pool }

func NewRequestRepo(db *pgxpool.Pool) *RequestRepo { return &RequestRepo{db: db} }

const requestCols = `
	r.id, r.request_id, r.title, r.description, r.department, r.stage,
	r.request_type, r.priority, r.triage_notes, r.scoring_notes,
	r.final_priority, r.final_score, r.strategic_alignment, r.cost_benefit,
	r.user_impact, r.ease_of_implementation, r.vendor_reputation_support,
	r.security_compliance, r.student_centered,
	r.created_by, r.created_at, r.updated_at,
	COALESCE(u.name, ''), COALESCE(u.email, '')`

func scanRequest(row pgx.Row, t *models.Request) error {
	return row.Scan(
		&t.ID, &t.RequestID, &t.Title, &t.Description, &t.Department, &t.Stage,
		&t.RequestType, &t.Priority, &t.TriageNotes, &t.ScoringNotes,
		&t.FinalPriority, &t.FinalScore, &t.StrategicAlignment, &t.CostBenefit,
		&t.UserImpact, &t.EaseOfImplementation, &t.VendorReputationSupport,
		&t.SecurityCompliance, &t.StudentCentered,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
		&t.CreatedByName, &t.CreatedByEmail,
	)
}

// -----------------------------------------------------------------------------
// Listing with filters + pagination + sort + creator name/email join
// -----------------------------------------------------------------------------

func (r *RequestRepo) List(ctx context.Context, f repository.RequestFilter) ([]models.Request, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	whereSQL, args := buildRequestWhere(f)

	// Count for pagination.
	var total int
	countSQL := `SELECT COUNT(*) FROM requests r ` + whereSQL
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortCol := sanitizeSort(f.Sort, "updated_at")
	sortOrd := sanitizeOrder(f.Order, "desc")

	sql := fmt.Sprintf(`
		SELECT %s
		FROM requests r
		LEFT JOIN users u ON u.id = r.created_by
		%s
		ORDER BY r.%s %s
		LIMIT $%d OFFSET $%d
	`, requestCols, whereSQL, sortCol, sortOrd, len(args)+1, len(args)+2)

	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Request
	for rows.Next() {
		var t models.Request
		if err := scanRequest(rows, &t); err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// ListByStages returns all requests in any of the given stages, newest first.
// Used by the dashboard's stage-grouped sections.
func (r *RequestRepo) ListByStages(ctx context.Context, stages []string) ([]models.Request, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM requests r
		LEFT JOIN users u ON u.id = r.created_by
		WHERE r.stage = ANY($1)
		ORDER BY r.created_at DESC
	`, requestCols)

	rows, err := r.db.Query(ctx, sql, stages)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Request
	for rows.Next() {
		var t models.Request
		if err := scanRequest(rows, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Single request + create/update
// -----------------------------------------------------------------------------

func (r *RequestRepo) Get(ctx context.Context, id string) (*models.Request, error) {
	var t models.Request
	sql := fmt.Sprintf(`
		SELECT %s
		FROM requests r
		LEFT JOIN users u ON u.id = r.created_by
		WHERE r.id = $1
	`, requestCols)
	err := scanRequest(r.db.QueryRow(ctx, sql, id), &t)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Create persists a new request and assigns its public identifier as
// previous-max + 1, zero-padded to 5 digits. The unique constraint on
// request_id catches two first-time saves racing for the same number;
// on conflict the max is re-read and the insert retried.
func (r *RequestRepo) Create(ctx context.Context, t *models.Request) error {
	const maxAttempts = 3
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var prev int
		if err := r.db.QueryRow(ctx,
			`SELECT COALESCE(MAX(request_id::integer), 0) FROM requests`,
		).Scan(&prev); err != nil {
			return err
		}
		t.RequestID = nextRequestID(prev)

		err := r.db.QueryRow(ctx, `
			INSERT INTO requests (request_id, title, description, department, stage, request_type, priority, triage_notes, created_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			RETURNING id, created_at, updated_at
		`,
			t.RequestID, t.Title, t.Description, t.Department, t.Stage,
			t.RequestType, t.Priority, t.TriageNotes, t.CreatedBy,
		).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return err
	}
	return errors.New("request id assignment: retries exhausted")
}

// Update writes the request's editable fields plus any history rows in
// one transaction. History rows get their id and timestamp filled in.
func (r *RequestRepo) Update(ctx context.Context, t *models.Request, note *models.TriageNoteHistory, changes []models.ChangeHistoryEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE requests SET
			title=$1, description=$2, department=$3, stage=$4, request_type=$5,
			priority=$6, triage_notes=$7, scoring_notes=$8, final_priority=$9,
			final_score=$10, strategic_alignment=$11, cost_benefit=$12,
			user_impact=$13, ease_of_implementation=$14,
			vendor_reputation_support=$15, security_compliance=$16,
			student_centered=$17, updated_at=now()
		WHERE id=$18
	`,
		t.Title, t.Description, t.Department, t.Stage, t.RequestType,
		t.Priority, t.TriageNotes, t.ScoringNotes, t.FinalPriority,
		t.FinalScore, t.StrategicAlignment, t.CostBenefit,
		t.UserImpact, t.EaseOfImplementation,
		t.VendorReputationSupport, t.SecurityCompliance,
		t.StudentCentered, t.ID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if note != nil {
		err := tx.QueryRow(ctx, `
			INSERT INTO triage_note_history (request_id, notes, author)
			VALUES ($1,$2,$3)
			RETURNING id, created_at
		`, note.RequestID, note.Notes, note.Author).Scan(&note.ID, &note.CreatedAt)
		if err != nil {
			return err
		}
	}

	for i := range changes {
		c := &changes[i]
		err := tx.QueryRow(ctx, `
			INSERT INTO change_history (request_id, field_name, old_value, new_value, author)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id, created_at
		`, c.RequestID, c.FieldName, c.OldValue, c.NewValue, c.Author).Scan(&c.ID, &c.CreatedAt)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	// Refresh the timestamp the UPDATE set.
	var updated models.Request
	sql := fmt.Sprintf(`
		SELECT %s FROM requests r
		LEFT JOIN users u ON u.id = r.created_by
		WHERE r.id = $1
	`, requestCols)
	if err := scanRequest(r.db.QueryRow(ctx, sql, t.ID), &updated); err == nil {
		*t = updated
	}
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// nextRequestID formats the identifier that follows the given
// previous-max numeric identifier: "00001" when none exists yet.
func nextRequestID(prev int) string {
	return fmt.Sprintf("%05d", prev+1)
}

func buildRequestWhere(f repository.RequestFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if s := strings.TrimSpace(f.Q); s != "" {
		p := "%" + s + "%"
		args = append(args, p, p, p)
		clauses = append(clauses, "(r.title ILIKE $"+itoa(len(args)-2)+" OR r.description ILIKE $"+itoa(len(args)-1)+" OR r.request_id ILIKE $"+itoa(len(args))+")")
	}
	if s := strings.TrimSpace(f.Stage); s != "" {
		args = append(args, s)
		clauses = append(clauses, "r.stage = $"+itoa(len(args)))
	}
	if s := strings.TrimSpace(f.RequestType); s != "" {
		args = append(args, s)
		clauses = append(clauses, "r.request_type = $"+itoa(len(args)))
	}
	if s := strings.TrimSpace(f.Priority); s != "" {
		args = append(args, s)
		clauses = append(clauses, "r.priority = $"+itoa(len(args)))
	}
	if s := strings.TrimSpace(f.Department); s != "" {
		args = append(args, s)
		clauses = append(clauses, "r.department = $"+itoa(len(args)))
	}
	if s := strings.TrimSpace(f.CreatedBy); s != "" {
		args = append(args, s)
		clauses = append(clauses, "r.created_by = $"+itoa(len(args)))
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func sanitizeSort(s, def string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "created_at", "updated_at", "priority", "request_id":
		return s
	default:
		return def
	}
}

func sanitizeOrder(o, def string) string {
	switch strings.ToLower(strings.TrimSpace(o)) {
	case "asc", "desc":
		return o
	default:
		return def
	}
}

func itoa(i int) string { return strconv.Itoa(i) }
