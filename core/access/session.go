package access

import (
	"context"
	"errors"
	"time"
)

type contextKeySessionType struct{}

var contextKeySession = &contextKeySessionType{}

// ErrNoOwner is returned by session operations that require an authenticated
// owner when there is none.
var ErrNoOwner = errors.New("no authenticated owner")

// Session is the request-scoped capability object the middleware exposes to
// downstream handlers. It is constructed per request and destroyed with it.
// Before authentication Owner and Token are nil; Login is still available,
// which is how login routes on the bypass set issue tokens.
type Session struct {
	Owner *Owner
	Token *Token

	auth *Auth
}

// ContextWithSession returns a new context with the session added to it.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKeySession, s)
}

// SessionFromContext retrieves the session from the context.
func SessionFromContext(ctx context.Context) *Session {
	s, ok := ctx.Value(contextKeySession).(*Session)
	if ok {
		return s
	}
	return nil
}

// Login issues a new token for the owner and binds it to the session.
func (s *Session) Login(ctx context.Context, owner *Owner) (*Token, error) {
	token, err := s.auth.tokens.Issue(ctx, owner, time.Now().Add(s.auth.expiry))
	if err != nil {
		return nil, err
	}
	s.Owner = owner
	s.Token = token
	return token, nil
}

// Logout deletes the current token. Logging out an unauthenticated session
// is a no-op.
func (s *Session) Logout(ctx context.Context) error {
	if s.Token == nil {
		return nil
	}
	err := s.auth.tokens.Revoke(ctx, s.Token.Code)
	s.Owner = nil
	s.Token = nil
	return err
}

// AddRole grants a role to the current owner, idempotently.
func (s *Session) AddRole(ctx context.Context, role string) error {
	if s.Owner == nil {
		return ErrNoOwner
	}
	return s.auth.roles.Add(ctx, s.Owner.ID, role)
}

// AddRoles grants several roles to the current owner.
func (s *Session) AddRoles(ctx context.Context, roles []string) error {
	for _, role := range roles {
		if err := s.AddRole(ctx, role); err != nil {
			return err
		}
	}
	return nil
}

// RemoveRole revokes a role from the current owner.
func (s *Session) RemoveRole(ctx context.Context, role string) error {
	if s.Owner == nil {
		return ErrNoOwner
	}
	return s.auth.roles.Remove(ctx, s.Owner.ID, role)
}

// RemoveRoles revokes several roles from the current owner.
func (s *Session) RemoveRoles(ctx context.Context, roles []string) error {
	for _, role := range roles {
		if err := s.RemoveRole(ctx, role); err != nil {
			return err
		}
	}
	return nil
}

// HasRole reports whether the current owner holds the role.
func (s *Session) HasRole(ctx context.Context, role string) (bool, error) {
	if s.Owner == nil {
		return false, nil
	}
	return s.auth.roles.Has(ctx, s.Owner.ID, role)
}

// HasRoles reports whether the current owner holds all of the roles.
func (s *Session) HasRoles(ctx context.Context, roles []string) (bool, error) {
	if s.Owner == nil {
		return false, nil
	}
	return s.auth.roles.HasAll(ctx, s.Owner.ID, roles)
}
