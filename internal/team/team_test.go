package team

import (
	"errors"
	"testing"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Platform", "platform"},
		{"CLP Team 7!", "clpteam"},
		{"a-b_c.d", "abcd"},
		{"ÜmläutTeam", "mlutteam"},
		{"123 456", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := Sanitize(c.raw); got != c.want {
			t.Fatalf("Sanitize(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestParseRejectsEmptyNamespace(t *testing.T) {
	if _, err := Parse("42!"); !errors.Is(err, ErrInvalidTeamName) {
		t.Fatalf("expected ErrInvalidTeamName, got %v", err)
	}
}

func TestParseCollision(t *testing.T) {
	a, err := Parse("Team Rocket")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b, err := Parse("TEAM-ROCKET")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a != b {
		t.Fatalf("expected same namespace, got %q and %q", a, b)
	}
}
