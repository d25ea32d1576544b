// Package access defines the authorization entities consumed by the service:
// accounts, roles, permissions and the per-request authorization context.
package access

import "strings"

// Entity names a protected resource kind.
type Entity string

const (
	EntityMFI    Entity = "MFI"
	EntityBranch Entity = "BRANCH"
)

// Action names an operation on an entity.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionView   Action = "VIEW"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Entities lists every entity the service guards.
var Entities = []Entity{EntityMFI, EntityBranch}

// Actions lists every action the service checks.
var Actions = []Action{ActionCreate, ActionView, ActionUpdate, ActionDelete}

// SuperName is the realm or role value that bypasses permission checks.
const SuperName = "super"

// Principal is the authenticated caller as asserted by its access token.
type Principal struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Realm    string `json:"realm,omitempty"`
	Role     string `json:"role,omitempty"`
}

// IsSuper reports whether the principal bypasses every permission check.
func (p *Principal) IsSuper() bool {
	return p.Realm == SuperName || p.Role == SuperName
}

// Account links a user to its role and the branches it may operate on.
type Account struct {
	ID             string   `json:"_id"`
	User           string   `json:"user"`
	Role           string   `json:"role,omitempty"`
	AccessBranches []string `json:"access_branches"`
	DefaultBranch  string   `json:"default_branch,omitempty"`
}

// BranchScope returns the branch ids the account is restricted to, or nil
// when the account may see every branch.
func (a *Account) BranchScope() []string {
	if a == nil {
		return nil
	}
	if len(a.AccessBranches) > 0 {
		return a.AccessBranches
	}
	if a.DefaultBranch != "" {
		return []string{a.DefaultBranch}
	}
	return nil
}

// Role is a named, ordered set of permissions.
type Role struct {
	ID          string       `json:"_id"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}

// Permission grants an operation on an entity. Name is an alternative label
// matched verbatim against the requested action.
type Permission struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Entity    string `json:"entity"`
	Operation string `json:"operation"`
}

// Grants reports whether p matches action, ignoring the entity.
func (p Permission) Grants(action Action) bool {
	return Action(strings.ToUpper(p.Operation)) == action || p.Name == string(action)
}

// GrantsOn reports whether p matches action on entity.
func (p Permission) GrantsOn(entity Entity, action Action) bool {
	return p.Entity == string(entity) && p.Grants(action)
}

// Allows reports whether any permission of r grants action on entity.
func (r *Role) Allows(entity Entity, action Action) bool {
	for _, p := range r.Permissions {
		if p.GrantsOn(entity, action) {
			return true
		}
	}
	return false
}

// AllowsAny reports whether any permission of r grants action on any entity.
func (r *Role) AllowsAny(action Action) bool {
	for _, p := range r.Permissions {
		if p.Grants(action) {
			return true
		}
	}
	return false
}

// Grant is an (entity, action) pair.
type Grant struct {
	Entity Entity `json:"entity"`
	Action Action `json:"action"`
}

// AuthorizationContext is the resolved permission set of a principal. It is
// computed once per request and then consulted by the permission gate and the
// handlers. It round-trips through JSON so it can be cached.
type AuthorizationContext struct {
	UserID  string   `json:"user_id"`
	Super   bool     `json:"super"`
	Account *Account `json:"account,omitempty"`
	Grants  []Grant  `json:"grants"`
	Actions []Action `json:"actions"`
}

// NewAuthorizationContext flattens role into the grants it carries across the
// known entities and actions.
func NewAuthorizationContext(userID string, account *Account, role *Role) *AuthorizationContext {
	ac := &AuthorizationContext{UserID: userID, Account: account}
	if role == nil {
		return ac
	}
	for _, a := range Actions {
		if role.AllowsAny(a) {
			ac.Actions = append(ac.Actions, a)
		}
		for _, e := range Entities {
			if role.Allows(e, a) {
				ac.Grants = append(ac.Grants, Grant{Entity: e, Action: a})
			}
		}
	}
	return ac
}

// SuperContext returns the context of a principal that bypasses all checks.
func SuperContext(userID string) *AuthorizationContext {
	return &AuthorizationContext{UserID: userID, Super: true}
}

// Allows reports whether the context permits action on entity.
func (ac *AuthorizationContext) Allows(entity Entity, action Action) bool {
	if ac == nil {
		return false
	}
	if ac.Super {
		return true
	}
	for _, g := range ac.Grants {
		if g.Entity == entity && g.Action == action {
			return true
		}
	}
	return false
}

// AllowsAction reports whether the context permits action on any entity.
func (ac *AuthorizationContext) AllowsAction(action Action) bool {
	if ac == nil {
		return false
	}
	if ac.Super {
		return true
	}
	for _, a := range ac.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// BranchScope returns the branch ids the caller is restricted to, or nil when
// unrestricted.
func (ac *AuthorizationContext) BranchScope() []string {
	if ac == nil || ac.Super {
		return nil
	}
	return ac.Account.BranchScope()
}
