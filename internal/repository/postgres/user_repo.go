package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/CC-PatrickC/MyGovRemaster/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct{ db *pgxpool.Pool }

func NewUserRepo(db *pgxpool.Pool) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, email, name, is_admin, groups, active, created_at, updated_at`

func scanUser(row pgx.Row, u *models.User) error {
	return row.Scan(&u.ID, &u.Email, &u.Name, &u.IsAdmin, &u.Groups, &u.Active, &u.CreatedAt, &u.UpdatedAt)
}

// Create user (stores bcrypt hash in password_h)
func (r *UserRepo) Create(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	var u models.User
	err := scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (email, name, password_h)
		VALUES ($1,$2,$3)
		RETURNING `+userCols,
		email, name, passwordHash), &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, string, error) {
	var u models.User
	var ph string
	err := r.db.QueryRow(ctx, `
		SELECT id, email, name, is_admin, groups, active, password_h, created_at, updated_at
		FROM users WHERE email=$1`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.IsAdmin, &u.Groups, &u.Active, &ph, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, "", nil
		}
		return nil, "", err
	}
	return &u, ph, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := scanUser(r.db.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id), &u)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// -----------------------------------------------------------------------------
// Admin/list/update operations
// -----------------------------------------------------------------------------

// List returns a filtered, paginated list of users and total count.
// Filters: q (matches email or name, ILIKE), admin (*bool), active (*bool).
func (r *UserRepo) List(ctx context.Context, q string, admin, active *bool, limit, offset int) ([]models.User, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	clauses := []string{"1=1"}
	args := []any{}

	if s := strings.TrimSpace(q); s != "" {
		p := "%" + s + "%"
		args = append(args, p, p)
		clauses = append(clauses, "(email ILIKE $"+itoa(len(args)-1)+" OR name ILIKE $"+itoa(len(args))+")")
	}
	if admin != nil {
		args = append(args, *admin)
		clauses = append(clauses, "is_admin = $"+itoa(len(args)))
	}
	if active != nil {
		args = append(args, *active)
		clauses = append(clauses, "active = $"+itoa(len(args)))
	}

	// Count
	countSQL := `SELECT COUNT(*) FROM users WHERE ` + strings.Join(clauses, " AND ")
	var total int
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Page
	args = append(args, limit, offset)
	listSQL := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d
	`, userCols, strings.Join(clauses, " AND "), len(args)-1, len(args))
	rows, err := r.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.IsAdmin, &u.Groups, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (r *UserRepo) SetAdmin(ctx context.Context, id string, adminFlag bool) (*models.User, error) {
	var u models.User
	err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users SET is_admin=$1, updated_at=now() WHERE id=$2
		RETURNING `+userCols, adminFlag, id), &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) SetGroups(ctx context.Context, id string, groups []string) (*models.User, error) {
	var u models.User
	err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users SET groups=$1, updated_at=now() WHERE id=$2
		RETURNING `+userCols, groups, id), &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	var u models.User
	err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users SET active=$1, updated_at=now() WHERE id=$2
		RETURNING `+userCols, active, id), &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UpdateBasic(ctx context.Context, id, name string) (*models.User, error) {
	var u models.User
	err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users SET name=$1, updated_at=now() WHERE id=$2
		RETURNING `+userCols, name, id), &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users SET password_h=$1, updated_at=now() WHERE id=$2
	`, passwordHash, id)
	return err
}
