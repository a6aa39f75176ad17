package guard

import "github.com/platinummonkey/gatehouse/pkg/identity"

// Policy is the static access policy: a mapping from operation name to the
// set of roles permitted to invoke it. It is declared by each protected
// operation's owner, built once at startup, and immutable afterwards.
// Operations absent from the policy are denied (fail closed).
type Policy struct {
	rules map[string]identity.RoleSet
}

// NewPolicy copies the rules into an immutable policy.
func NewPolicy(rules map[string]identity.RoleSet) *Policy {
	copied := make(map[string]identity.RoleSet, len(rules))
	for op, roles := range rules {
		set := make(identity.RoleSet, len(roles))
		for r := range roles {
			set[r] = struct{}{}
		}
		copied[op] = set
	}
	return &Policy{rules: copied}
}

// RequiredRoles returns the role set for an operation. ok is false for
// undeclared operations.
func (p *Policy) RequiredRoles(operation string) (identity.RoleSet, bool) {
	roles, ok := p.rules[operation]
	return roles, ok
}

// Operations returns the declared operation names.
func (p *Policy) Operations() []string {
	ops := make([]string, 0, len(p.rules))
	for op := range p.rules {
		ops = append(ops, op)
	}
	return ops
}
