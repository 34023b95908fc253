package models

import "testing"

func TestPrincipalClass(t *testing.T) {
	tests := []struct {
		class PrincipalClass
		name  string
		valid bool
	}{
		{ClassUser, "user", true},
		{ClassAdmin, "admin", true},
		{PrincipalClass(0), "unknown", false},
		{PrincipalClass(42), "unknown", false},
	}

	for _, tt := range tests {
		if got := tt.class.String(); got != tt.name {
			t.Fatalf("String(%d) = %q, want %q", tt.class, got, tt.name)
		}
		if got := tt.class.Valid(); got != tt.valid {
			t.Fatalf("Valid(%d) = %v, want %v", tt.class, got, tt.valid)
		}
	}
}
