// Package postgres implements the storage.Store interface on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/storage"
)

// Store is a PostgreSQL-backed storage.Store.
type Store struct {
	db *sql.DB
}

// NewStore creates a store on an existing connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const userColumns = `id, external_id, email, role, organization_id, is_active, created_at, updated_at`

// FindUserByExternalID looks up a user by identity-provider subject id.
func (s *Store) FindUserByExternalID(ctx context.Context, externalID string) (*identity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE external_id = $1
	`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, externalID))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by external id: %w", err)
	}
	return user, nil
}

// FindUserByID looks up a user by internal id.
func (s *Store) FindUserByID(ctx context.Context, id string) (*identity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreateUser inserts a new user, assigning id and timestamps. A uniqueness
// violation on external_id is reported as storage.ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, user *identity.User) (*identity.User, error) {
	now := time.Now().UTC()
	created := *user
	created.ID = uuid.NewString()
	created.CreatedAt = now
	created.UpdatedAt = now

	query := `
		INSERT INTO users (id, external_id, email, role, organization_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		created.ID, nullString(created.ExternalID), created.Email, string(created.Role),
		nullString(created.OrganizationID), created.IsActive, created.CreatedAt, created.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &created, nil
}

// UpdateUser applies the patch to the stored user and returns the updated
// record. The SET clause is assembled from the closed field set of
// identity.UserUpdate; there is no dynamic field mapping.
func (s *Store) UpdateUser(ctx context.Context, id string, update identity.UserUpdate) (*identity.User, error) {
	if update.IsZero() {
		return s.FindUserByID(ctx, id)
	}

	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	next := func() int { return len(args) + 1 }

	if update.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", next()))
		args = append(args, *update.Email)
	}
	if update.Role != nil {
		sets = append(sets, fmt.Sprintf("role = $%d", next()))
		args = append(args, string(*update.Role))
	}
	if update.OrganizationID != nil {
		sets = append(sets, fmt.Sprintf("organization_id = $%d", next()))
		args = append(args, *update.OrganizationID)
	}
	if update.IsActive != nil {
		sets = append(sets, fmt.Sprintf("is_active = $%d", next()))
		args = append(args, *update.IsActive)
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", next()))
	args = append(args, time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if affected == 0 {
		return nil, storage.ErrNotFound
	}

	return s.FindUserByID(ctx, id)
}

// FindOrganization looks up an organization by id.
func (s *Store) FindOrganization(ctx context.Context, id string) (*identity.Organization, error) {
	query := `
		SELECT id, name, created_at
		FROM organizations
		WHERE id = $1
	`
	org := &identity.Organization{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	return org, nil
}

// ListUsersByOrganization returns all users in the organization.
func (s *Store) ListUsersByOrganization(ctx context.Context, organizationID string) ([]*identity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*identity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*identity.User, error) {
	user := &identity.User{}
	var externalID sql.NullString
	var orgID sql.NullString
	var role string
	if err := row.Scan(
		&user.ID, &externalID, &user.Email, &role,
		&orgID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = identity.Role(role)
	if externalID.Valid {
		user.ExternalID = &externalID.String
	}
	if orgID.Valid {
		user.OrganizationID = &orgID.String
	}
	return user, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// isUniqueViolation detects a uniqueness-constraint failure. The string
// fallback covers the sqlite driver used by in-memory tests.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
