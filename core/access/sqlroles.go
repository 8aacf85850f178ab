package access

import (
	"context"

	"github.com/lib/pq"

	"github.com/spinal-tech/spinal/core/csql"
)

// SQLRoleStore is the relational RoleStore.
type SQLRoleStore struct {
	db *csql.DB
}

// NewSQLRoleStore creates the role table (if it does not exist yet) and
// returns the store.
func NewSQLRoleStore(db *csql.DB) (*SQLRoleStore, error) {
	_, err := db.Exec(`CREATE table IF NOT EXISTS ` + db.Schema + `."_role_"
(code varchar NOT NULL,
owner_id uuid NOT NULL
);`)
	if err != nil {
		return nil, err
	}
	return &SQLRoleStore{db: db}, nil
}

// Add grants a role with find-or-create semantics: a role the owner already
// holds is not inserted again.
func (s *SQLRoleStore) Add(ctx context.Context, ownerID, role string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.db.Schema+`."_role_"(code,owner_id)
SELECT $1,$2 WHERE NOT EXISTS
(SELECT 1 FROM `+s.db.Schema+`."_role_" WHERE code=$1 AND owner_id=$2);`,
		role, ownerID)
	return err
}

// Remove revokes a role, deleting at most one membership row.
func (s *SQLRoleStore) Remove(ctx context.Context, ownerID, role string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM `+s.db.Schema+`."_role_" WHERE ctid IN
(SELECT ctid FROM `+s.db.Schema+`."_role_" WHERE code=$1 AND owner_id=$2 LIMIT 1);`,
		role, ownerID)
	return err
}

// Has reports whether the owner holds the role.
func (s *SQLRoleStore) Has(ctx context.Context, ownerID, role string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM `+s.db.Schema+`."_role_" WHERE code=$1 AND owner_id=$2;`,
		role, ownerID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasAll reports whether the owner holds every one of the roles, as an exact
// count match over the distinct role set.
func (s *SQLRoleStore) HasAll(ctx context.Context, ownerID string, roles []string) (bool, error) {
	if len(roles) == 0 {
		return true, nil
	}
	distinct := make([]string, 0, len(roles))
	seen := map[string]bool{}
	for _, role := range roles {
		if !seen[role] {
			seen[role] = true
			distinct = append(distinct, role)
		}
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(DISTINCT code) FROM `+s.db.Schema+`."_role_" WHERE owner_id=$1 AND code = ANY($2);`,
		ownerID, pq.Array(distinct)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == len(distinct), nil
}
