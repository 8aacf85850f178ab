/*Package access provides the token-based authentication and role-based
access-control middleware.

Every request runs through a fixed decision sequence: bootstrap bypass,
allow-list, token format check, token resolution with sliding expiry, then
role requirement matching. The middleware attaches a request-scoped Session
to the context which downstream handlers use for login, logout and role
management.
*/
package access

import (
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/gorilla/mux"

	"github.com/spinal-tech/spinal/core/logger"
	"github.com/spinal-tech/spinal/core/rest"
)

// Rule maps a path pattern to a required role.
type Rule struct {
	Pattern string `json:"pattern"`
	Role    string `json:"role"`
}

// Config configures the middleware. It is threaded explicitly through
// construction; there is no ambient state.
type Config struct {
	// TokenHeader is the request header carrying the opaque token.
	// Defaults to "token".
	TokenHeader string
	// Expiry is the sliding expiration window. Defaults to two hours.
	Expiry time.Duration
	// Bypass is the fixed set of paths that always pass without any check.
	// Defaults to "/", "/login" and "/register".
	Bypass []string
	// Allow lists path patterns that bypass authentication entirely.
	Allow []string
	// Rules is the access-rule table mapping path patterns to required
	// roles.
	Rules []Rule
	// Tokens is the token lifecycle store. Mandatory.
	Tokens TokenStore
	// Roles is the role membership store. Mandatory.
	Roles RoleStore
}

type accessRule struct {
	pattern *regexp.Regexp
	role    string
}

// Auth is the compiled middleware. The pattern tables are built once at
// construction and immutable afterwards, safe for concurrent reads.
type Auth struct {
	tokenHeader string
	expiry      time.Duration
	bypass      map[string]bool
	allow       []*regexp.Regexp
	rules       []accessRule
	tokens      TokenStore
	roles       RoleStore
}

// New compiles the configuration into a middleware.
func New(cfg Config) (*Auth, error) {
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("access: token store is missing")
	}
	if cfg.Roles == nil {
		return nil, fmt.Errorf("access: role store is missing")
	}
	a := &Auth{
		tokenHeader: cfg.TokenHeader,
		expiry:      cfg.Expiry,
		bypass:      map[string]bool{},
		tokens:      cfg.Tokens,
		roles:       cfg.Roles,
	}
	if a.tokenHeader == "" {
		a.tokenHeader = "token"
	}
	if a.expiry == 0 {
		a.expiry = 2 * time.Hour
	}
	bypass := cfg.Bypass
	if bypass == nil {
		bypass = []string{"/", "/login", "/register"}
	}
	for _, path := range bypass {
		a.bypass[path] = true
	}
	for _, pattern := range cfg.Allow {
		re, err := compilePattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("access: allow pattern %q: %w", pattern, err)
		}
		a.allow = append(a.allow, re)
	}
	for _, rule := range cfg.Rules {
		re, err := compilePattern(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("access: rule pattern %q: %w", rule.Pattern, err)
		}
		a.rules = append(a.rules, accessRule{pattern: re, role: rule.Role})
	}
	return a, nil
}

// requiredRoles collects the required roles of every access rule matching
// the path, deduplicated.
func (a *Auth) requiredRoles(path string) []string {
	var required []string
	seen := map[string]bool{}
	for _, rule := range a.rules {
		if rule.pattern.MatchString(path) && !seen[rule.role] {
			seen[rule.role] = true
			required = append(required, rule.role)
		}
	}
	return required
}

func (a *Auth) allowed(path string) bool {
	for _, re := range a.allow {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Middleware returns the request-intercepting stage. Authentication and
// authorization fully resolve before any downstream handler observes the
// request; the expiry refresh write completes before control moves on.
func (a *Auth) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := &Session{auth: a}
			ctx := ContextWithSession(r.Context(), session)
			r = r.WithContext(ctx)
			rlog := logger.FromContext(ctx)
			path := r.URL.Path

			if a.bypass[path] || a.allowed(path) {
				next.ServeHTTP(w, r)
				return
			}

			code := r.Header.Get(a.tokenHeader)
			if code == "" {
				rest.Unauthorized(w, "this API requires a token, login first")
				return
			}
			if !codePattern.MatchString(code) {
				rest.Unauthorized(w, "invalid token")
				return
			}

			token, owner, err := a.tokens.Resolve(ctx, code)
			if err == ErrTokenNotFound {
				rest.ExpiredToken(w, "token expired, login again")
				return
			}
			if err != nil {
				rlog.WithError(err).Errorln("cannot resolve token")
				rest.Unknown(w, "token store triggered an error")
				return
			}
			if !token.ExpireAt.IsZero() && token.ExpireAt.Before(time.Now()) {
				// expiry detection deletes the stale token
				if err := a.tokens.Revoke(ctx, code); err != nil {
					rlog.WithError(err).Warnln("cannot revoke expired token")
				}
				rest.ExpiredToken(w, "token expired, login again")
				return
			}

			// sliding expiration: push the expiry forward from now
			if err := a.tokens.Refresh(ctx, code, time.Now().Add(a.expiry)); err != nil {
				rlog.WithError(err).Warnln("cannot refresh token expiry")
			}

			session.Owner = owner
			session.Token = token
			ctx, rlog = logger.ContextWithLoggerIdentity(ctx, owner.ID)
			r = r.WithContext(ContextWithSession(ctx, session))

			if required := a.requiredRoles(path); len(required) > 0 {
				ok, err := a.roles.HasAll(ctx, owner.ID, required)
				if err != nil {
					rlog.WithError(err).Errorln("cannot check roles")
					rest.Unknown(w, "role store triggered an error")
					return
				}
				if !ok {
					rest.Unauthorized(w, "you are not authorized for this route")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
