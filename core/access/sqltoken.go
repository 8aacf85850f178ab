package access

import (
	"context"
	"time"

	"github.com/spinal-tech/spinal/core/csql"
)

// SQLTokenStore is the relational TokenStore. Tokens live in a dedicated
// table; the owner record is loaded through the provided loader, typically
// the persistence layer's find-by-id on the authenticated model.
type SQLTokenStore struct {
	db        *csql.DB
	loadOwner func(ctx context.Context, ownerID string) (map[string]any, error)
}

// NewSQLTokenStore creates the token table (if it does not exist yet) and
// returns the store. The owner loader is optional; without it resolved
// owners carry only their identity.
func NewSQLTokenStore(db *csql.DB, loadOwner func(ctx context.Context, ownerID string) (map[string]any, error)) (*SQLTokenStore, error) {
	_, err := db.Exec(`CREATE table IF NOT EXISTS ` + db.Schema + `."_token_"
(code varchar NOT NULL PRIMARY KEY,
expire_at timestamp NOT NULL,
owner_id uuid NOT NULL
);`)
	if err != nil {
		return nil, err
	}
	return &SQLTokenStore{db: db, loadOwner: loadOwner}, nil
}

// Issue creates and persists a new token for the owner.
func (s *SQLTokenStore) Issue(ctx context.Context, owner *Owner, expireAt time.Time) (*Token, error) {
	token := &Token{Code: GenerateCode(), ExpireAt: expireAt, OwnerID: owner.ID}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.db.Schema+`."_token_"(code,expire_at,owner_id) VALUES($1,$2,$3);`,
		token.Code, token.ExpireAt, token.OwnerID)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Resolve looks up the token row and the owner record it belongs to.
func (s *SQLTokenStore) Resolve(ctx context.Context, code string) (*Token, *Owner, error) {
	token := &Token{Code: code}
	err := s.db.QueryRowContext(ctx,
		`SELECT expire_at, owner_id FROM `+s.db.Schema+`."_token_" WHERE code=$1;`,
		code).Scan(&token.ExpireAt, &token.OwnerID)
	if err == csql.ErrNoRows {
		return nil, nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	owner := &Owner{ID: token.OwnerID}
	if s.loadOwner != nil {
		record, err := s.loadOwner(ctx, token.OwnerID)
		if err == nil {
			owner.Record = record
		}
	}
	return token, owner, nil
}

// Refresh slides the token's expiry forward.
func (s *SQLTokenStore) Refresh(ctx context.Context, code string, expireAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE `+s.db.Schema+`."_token_" SET expire_at=$2 WHERE code=$1;`,
		code, expireAt)
	return err
}

// Revoke deletes the token.
func (s *SQLTokenStore) Revoke(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM `+s.db.Schema+`."_token_" WHERE code=$1;`,
		code)
	return err
}
