package access

import (
	"encoding/json"
	"testing"
)

func TestPrincipalIsSuper(t *testing.T) {
	tests := []struct {
		name string
		p    Principal
		want bool
	}{
		{"super realm", Principal{Realm: "super"}, true},
		{"super role", Principal{Role: "super"}, true},
		{"plain", Principal{Realm: "staff", Role: "teller"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.IsSuper(); got != tt.want {
				t.Errorf("IsSuper() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPermissionGrantsOn(t *testing.T) {
	tests := []struct {
		name   string
		perm   Permission
		entity Entity
		action Action
		want   bool
	}{
		{"operation lower case", Permission{Entity: "BRANCH", Operation: "view"}, EntityBranch, ActionView, true},
		{"name match", Permission{Entity: "BRANCH", Name: "UPDATE", Operation: "edit"}, EntityBranch, ActionUpdate, true},
		{"wrong entity", Permission{Entity: "MFI", Operation: "VIEW"}, EntityBranch, ActionView, false},
		{"wrong action", Permission{Entity: "BRANCH", Operation: "VIEW"}, EntityBranch, ActionDelete, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.perm.GrantsOn(tt.entity, tt.action); got != tt.want {
				t.Errorf("GrantsOn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthorizationContextFromRole(t *testing.T) {
	role := &Role{Name: "teller", Permissions: []Permission{
		{Entity: "BRANCH", Operation: "VIEW"},
		{Entity: "MFI", Operation: "view"},
		{Entity: "BRANCH", Name: "CREATE", Operation: "add"},
	}}
	ac := NewAuthorizationContext("u-1", &Account{User: "u-1"}, role)

	if !ac.Allows(EntityBranch, ActionView) || !ac.Allows(EntityMFI, ActionView) {
		t.Error("expected VIEW on both entities")
	}
	if !ac.Allows(EntityBranch, ActionCreate) {
		t.Error("expected BRANCH CREATE via permission name")
	}
	if ac.Allows(EntityMFI, ActionCreate) || ac.Allows(EntityBranch, ActionDelete) {
		t.Error("unexpected grant")
	}
	if !ac.AllowsAction(ActionCreate) || ac.AllowsAction(ActionDelete) {
		t.Error("entity-agnostic check mismatch")
	}
}

func TestAuthorizationContextWithoutRoleDenies(t *testing.T) {
	ac := NewAuthorizationContext("u-1", &Account{User: "u-1"}, nil)
	for _, e := range Entities {
		for _, a := range Actions {
			if ac.Allows(e, a) {
				t.Errorf("%s %s allowed without role", e, a)
			}
		}
	}
	var nilCtx *AuthorizationContext
	if nilCtx.Allows(EntityMFI, ActionView) {
		t.Error("nil context must deny")
	}
}

func TestSuperContextAllowsEverything(t *testing.T) {
	ac := SuperContext("root")
	if !ac.Allows(EntityMFI, ActionDelete) || !ac.AllowsAction(ActionUpdate) {
		t.Error("super must be allowed")
	}
	if ac.BranchScope() != nil {
		t.Error("super must be unscoped")
	}
}

func TestAuthorizationContextJSONRoundTrip(t *testing.T) {
	role := &Role{Permissions: []Permission{{Entity: "MFI", Operation: "UPDATE"}}}
	ac := NewAuthorizationContext("u-1", &Account{User: "u-1", DefaultBranch: "b-1"}, role)

	data, err := json.Marshal(ac)
	if err != nil {
		t.Fatal(err)
	}
	var got AuthorizationContext
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if !got.Allows(EntityMFI, ActionUpdate) {
		t.Error("grant lost in round trip")
	}
	if s := got.BranchScope(); len(s) != 1 || s[0] != "b-1" {
		t.Errorf("scope = %v", s)
	}
}

func TestAccountBranchScope(t *testing.T) {
	tests := []struct {
		name string
		acc  *Account
		want []string
	}{
		{"nil account", nil, nil},
		{"access branches win", &Account{AccessBranches: []string{"a", "b"}, DefaultBranch: "c"}, []string{"a", "b"}},
		{"default branch", &Account{DefaultBranch: "c"}, []string{"c"}},
		{"unscoped", &Account{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.acc.BranchScope()
			if len(got) != len(tt.want) {
				t.Fatalf("scope = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("scope[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}
