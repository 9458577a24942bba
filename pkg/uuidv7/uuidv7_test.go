package uuidv7

import (
	"crypto/rand"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestNew(t *testing.T) {
	u, err := New()
	if err != nil {
		t.Fatalf("expected nil err, got %v", err)
	}
	if u.Version() != 7 {
		t.Fatalf("expected version 7, got %d", u.Version())
	}
	if u.Variant() != uuid.RFC4122 {
		t.Fatalf("expected RFC4122 variant, got %v", u.Variant())
	}
}

func TestNewStringsSortInCreationOrder(t *testing.T) {
	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		got, err := NewString()
		if err != nil {
			t.Fatalf("expected nil err, got %v", err)
		}
		if _, err := uuid.Parse(got); err != nil {
			t.Fatalf("expected parseable uuid, got %v", err)
		}
		ids = append(ids, got)
		time.Sleep(2 * time.Millisecond)
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatalf("expected lexicographic order, got %v", ids)
	}
}

func TestNewReadError(t *testing.T) {
	orig := rand.Reader
	rand.Reader = errReader{}
	defer func() { rand.Reader = orig }()

	if _, err := New(); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewString(); err == nil {
		t.Fatal("expected error")
	}
}
