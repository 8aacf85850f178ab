package access

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"regexp"
	"time"
)

// ErrTokenNotFound is returned by a TokenStore when a token code is unknown
// or already expired away by the store.
var ErrTokenNotFound = errors.New("token not found")

// codePattern is the fixed token format: 32 lowercase hex characters.
var codePattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

// Token is one issued authentication token.
type Token struct {
	Code     string    `json:"code"`
	ExpireAt time.Time `json:"expire"`
	OwnerID  string    `json:"-"`
}

// Owner is the resolved identity a token belongs to. Record carries the
// owner's attributes when the backing store has them at hand; it may be nil.
type Owner struct {
	ID     string
	Record map[string]any
}

// TokenStore is the token lifecycle capability. Two interchangeable
// implementations exist: a relational store holding token rows joined to the
// owner record, and a key-value store holding a serialized owner snapshot
// with store-side TTL expiry.
type TokenStore interface {
	// Issue creates and persists a new token for the owner.
	Issue(ctx context.Context, owner *Owner, expireAt time.Time) (*Token, error)
	// Resolve looks up a token by code. A zero ExpireAt means expiry is
	// enforced by the store itself.
	Resolve(ctx context.Context, code string) (*Token, *Owner, error)
	// Refresh slides the token's expiry forward.
	Refresh(ctx context.Context, code string, expireAt time.Time) error
	// Revoke deletes the token.
	Revoke(ctx context.Context, code string) error
}

// GenerateCode returns a fresh token code in the fixed format.
func GenerateCode() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
