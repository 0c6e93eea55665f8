package model

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		in     string
		want   Role
		wantOK bool
	}{
		{"admin", RoleAdmin, true},
		{" Provider ", RoleProvider, true},
		{"USER", RoleUser, true},
		{"guest", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestUser_HasRole(t *testing.T) {
	u := &User{Role: RoleProvider}
	if !u.HasRole() {
		t.Error("empty role list should match any user")
	}
	if !u.HasRole(RoleAdmin, RoleProvider) {
		t.Error("expected provider to match [admin provider]")
	}
	if u.HasRole(RoleAdmin) {
		t.Error("provider should not match [admin]")
	}

	mystery := &User{Role: "moderator"}
	if !mystery.HasRole(RoleUser) {
		t.Error("unknown role should count as user")
	}
	if mystery.HasRole(RoleAdmin, RoleProvider) {
		t.Error("unknown role should not match [admin provider]")
	}

	var nilUser *User
	if nilUser.HasRole() {
		t.Error("nil user should never match")
	}
}

func TestUser_Clone(t *testing.T) {
	u := &User{ID: "u1", Role: RoleUser}
	c := u.Clone()
	c.IsEmailVerified = true
	if u.IsEmailVerified {
		t.Error("clone shares memory with original")
	}
	var nilUser *User
	if nilUser.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}
