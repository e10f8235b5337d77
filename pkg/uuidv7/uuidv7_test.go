package uuidv7

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewVersionAndVariant(t *testing.T) {
	t.Parallel()

	u, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if u.Version() != 7 {
		t.Fatalf("version=%d", u.Version())
	}
	if u.Variant() != uuid.RFC4122 {
		t.Fatalf("variant=%v", u.Variant())
	}
}

func TestNewStringIsParseable(t *testing.T) {
	t.Parallel()

	s, err := NewString()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(s); err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
}

func TestNewIsTimeOrderedWithinRun(t *testing.T) {
	t.Parallel()

	a, err := NewString()
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewString()
	if err != nil {
		t.Fatal(err)
	}
	// Millisecond prefixes are non-decreasing within one process.
	if a[:8] > b[:8] {
		t.Fatalf("timestamps out of order: %q then %q", a, b)
	}
}
