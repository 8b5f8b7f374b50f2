package model

import "testing"

func TestPolicyAllows(t *testing.T) {
	tests := []struct {
		policy   Policy
		role     Role
		perm     Permission
		expected bool
	}{
		{Policy{}, RoleAdmin, PermModerate, true},
		{Policy{}, RoleSuperAdmin, PermModerate, false},
		{Policy{}, RoleUser, PermModerate, false},
		{Policy{SuperAdminModerates: true}, RoleSuperAdmin, PermModerate, true},
		{Policy{SuperAdminModerates: true}, RoleAdmin, PermModerate, true},
		{Policy{SuperAdminModerates: true}, RoleUser, PermModerate, false},
		{Policy{}, RoleSuperAdmin, PermManageRoles, true},
		{Policy{}, RoleAdmin, PermManageRoles, false},
		{Policy{}, RoleUser, PermManageRoles, false},
		// Unknown roles and permissions fail closed.
		{Policy{}, "root", PermModerate, false},
		{Policy{}, "", PermManageRoles, false},
		{Policy{}, RoleSuperAdmin, Permission(99), false},
	}

	for _, tt := range tests {
		got := tt.policy.Allows(tt.role, tt.perm)
		if got != tt.expected {
			t.Errorf("%+v.Allows(%q, %d) = %v, want %v", tt.policy, tt.role, tt.perm, got, tt.expected)
		}
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAdmin, RoleSuperAdmin} {
		if !r.Valid() {
			t.Errorf("expected %q to be valid", r)
		}
	}
	for _, r := range []Role{"", "manager", "Admin"} {
		if r.Valid() {
			t.Errorf("expected %q to be invalid", r)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"123456", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"ana@uni.si", true},
		{"first.last@student.uni.edu", true},
		{"no-at-sign.com", false},
		{"two@@signs.com", false},
		{"missing@tld", false},
		{"spaces in@uni.si", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidEmail(tt.email); got != tt.want {
			t.Errorf("ValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}
