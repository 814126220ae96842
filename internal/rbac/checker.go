package rbac

import (
	"context"
	"sort"
	"strings"
)

// Checker answers role -> permission questions for the job API. Patterns may
// end in "*" ("job:*"); a bare "*" grants everything.
type Checker struct {
	RolePermissions map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{RolePermissions: rp}
}

// Known reports whether role appears in the policy at all.
func (c *Checker) Known(role string) bool {
	_, ok := c.RolePermissions[role]
	return ok
}

// Roles lists the roles of the policy, sorted.
func (c *Checker) Roles() []string {
	out := make([]string, 0, len(c.RolePermissions))
	for r := range c.RolePermissions {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (c *Checker) Has(role, perm string) bool {
	for _, p := range c.RolePermissions[role] {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

func (c *Checker) All(role string, perms ...string) bool {
	for _, p := range perms {
		if !c.Has(role, p) {
			return false
		}
	}
	return len(perms) > 0
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(perm, prefix)
	}
	return false
}

// KnownRole checks role against the default policy.
func KnownRole(role string) bool { return defaultChecker.Known(role) }

type ctxKey struct{}

// WithRole stores the caller's role; Require and friends read it back.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}
