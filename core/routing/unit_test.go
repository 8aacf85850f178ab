package routing

import (
	"math/rand"
	"reflect"
	"testing"
)

func names(units []Unit) []string {
	result := make([]string, len(units))
	for i, u := range units {
		result[i] = u.Name
	}
	return result
}

func TestOrder(t *testing.T) {
	units := []Unit{
		NewUnit("index", NewHandle()),
		NewUnit("api/users/index", NewHandle()),
		NewUnit("api/notes", NewHandle()),
		NewUnit("login", NewHandle()),
		NewUnit("api/index", NewHandle()),
		NewUnit("admin/index", NewHandle()),
	}
	Order(units)
	want := []string{
		"api/users/index",
		"api/notes",
		"admin/index",
		"api/index",
		"login",
		"index",
	}
	if got := names(units); !reflect.DeepEqual(got, want) {
		t.Fatalf("wrong binding order: %v", got)
	}
}

func TestOrderIsTotal(t *testing.T) {
	// the binding order must not depend on discovery order
	base := []Unit{
		NewUnit("index", NewHandle()),
		NewUnit("api/users/index", NewHandle()),
		NewUnit("api/notes", NewHandle()),
		NewUnit("login", NewHandle()),
		NewUnit("api/index", NewHandle()),
	}
	Order(base)
	want := names(base)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := make([]Unit, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		Order(shuffled)
		if got := names(shuffled); !reflect.DeepEqual(got, want) {
			t.Fatalf("shuffle %d changed the order: %v", i, got)
		}
	}
}

func TestMountPath(t *testing.T) {
	testCases := []struct {
		name     string
		location string
		want     string
	}{
		{"login", "", "/login"},
		{"index", "", "/"},
		{"api/users/index", "", "/api/users"},
		{"api/notes", "", "/api/notes"},
		{"users/@id/notes", "", "/users/{id}/notes"},
		{"whatever", "v2/accounts", "/v2/accounts"},
		{"whatever", "v2/accounts/@accountId", "/v2/accounts/{accountId}"},
	}
	for _, tc := range testCases {
		t.Run(tc.name+tc.location, func(t *testing.T) {
			handle := NewHandle()
			handle.Location = tc.location
			unit := NewUnit(tc.name, handle)
			if got := mountPath(unit); got != tc.want {
				t.Fatalf("expected mount %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRewriteParams(t *testing.T) {
	testCases := []struct{ in, want string }{
		{"users/@id", "users/{id}"},
		{"users/@id/notes/@noteId", "users/{id}/notes/{noteId}"},
		{"users/@", "users/@"},
		{"plain/path", "plain/path"},
	}
	for _, tc := range testCases {
		if got := rewriteParams(tc.in); got != tc.want {
			t.Fatalf("rewrite %q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestUnitDepth(t *testing.T) {
	if NewUnit("index", nil).Depth != 0 {
		t.Fatal("flat unit must have depth 0")
	}
	if NewUnit("api/users/index", nil).Depth != 2 {
		t.Fatal("nested unit must count path separators")
	}
}
