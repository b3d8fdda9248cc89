package credential

import (
	"context"
	"errors"
	"testing"
)

type errStore struct{ err error }

func (s errStore) Get(context.Context, string) (string, bool, error) {
	return "", false, s.err
}

func TestAccessToken(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		store  Store
		want   string
		wantOK bool
	}{
		{
			name:   "present",
			store:  NewMemoryStore(map[string]string{AccessTokenKey: "tok"}),
			want:   "tok",
			wantOK: true,
		},
		{
			name:  "absent",
			store: NewMemoryStore(nil),
		},
		{
			name:  "empty value",
			store: NewMemoryStore(map[string]string{AccessTokenKey: ""}),
		},
		{
			name:  "store error",
			store: errStore{err: errors.New("disk on fire")},
		},
		{
			name: "nil store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AccessToken(ctx, tt.store, nil)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("AccessToken() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	seed := map[string]string{"a": "1"}
	s := NewMemoryStore(seed)

	// Seed map is copied
	seed["a"] = "changed"
	if v, ok, _ := s.Get(ctx, "a"); !ok || v != "1" {
		t.Errorf("Get(a) = (%q, %v), want (\"1\", true)", v, ok)
	}

	if err := s.Set(ctx, "b", "2"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, _, _ := s.Get(ctx, "b"); v != "2" {
		t.Errorf("Get(b) = %q, want %q", v, "2")
	}

	if err := s.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "b"); ok {
		t.Error("expected b to be deleted")
	}

	if _, _, err := s.Get(ctx, ""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Get(\"\") error = %v, want ErrEmptyKey", err)
	}
	if err := s.Set(ctx, "", "x"); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Set(\"\") error = %v, want ErrEmptyKey", err)
	}
}
