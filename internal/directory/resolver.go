// Package directory resolves a requester's manager chain from the
// organization directory. The lookup is side-effect free and never
// fails the caller on a missing record: an unknown or inactive user
// simply has no managers.
package directory

import (
	"context"
	"database/sql"
)

// Approvers is the manager pair seeding an approval chain. Either id
// may be absent.
type Approvers struct {
	PrimaryManagerID   *int64
	SecondaryManagerID *int64
}

// Resolver looks up the approvers for a user at request submission time.
type Resolver interface {
	ResolveApprovers(ctx context.Context, orgID, userID int64) (Approvers, error)
}

// SQLResolver resolves approvers from the users table.
type SQLResolver struct {
	DB *sql.DB
}

// NewSQLResolver creates a resolver backed by the organization directory.
func NewSQLResolver(db *sql.DB) *SQLResolver {
	return &SQLResolver{DB: db}
}

// ResolveApprovers returns the user's manager pair. Managers that are
// missing, inactive, or outside the organization are treated as absent.
// A missing user yields zero managers, not an error.
func (r *SQLResolver) ResolveApprovers(ctx context.Context, orgID, userID int64) (Approvers, error) {
	var out Approvers
	err := r.DB.QueryRowContext(ctx, `
		SELECT m.id, sm.id
		FROM users u
		LEFT JOIN users m ON m.id = u.manager_id AND m.org_id = u.org_id AND m.is_active = true
		LEFT JOIN users sm ON sm.id = u.secondary_manager_id AND sm.org_id = u.org_id AND sm.is_active = true
		WHERE u.id = $1 AND u.org_id = $2`, userID, orgID).
		Scan(&out.PrimaryManagerID, &out.SecondaryManagerID)
	if err == sql.ErrNoRows {
		return Approvers{}, nil
	}
	if err != nil {
		return Approvers{}, err
	}
	return out, nil
}

// StaticResolver returns a fixed approver pair. Used in tests.
type StaticResolver struct {
	Approvers Approvers
	Err       error
}

// ResolveApprovers returns the configured pair.
func (r *StaticResolver) ResolveApprovers(ctx context.Context, orgID, userID int64) (Approvers, error) {
	return r.Approvers, r.Err
}
