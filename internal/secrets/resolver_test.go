package secrets

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bartdeslagmulder/now-cli/internal/model"
)

type fakeLister struct {
	mu      sync.Mutex
	calls   int
	secrets []model.Secret
	err     error
}

func (f *fakeLister) ListSecrets(ctx context.Context) ([]model.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.secrets, f.err
}

func TestResolve_Literals(t *testing.T) {
	lister := &fakeLister{}
	r := NewResolver(lister)

	tests := []struct {
		in   string
		want string
	}{
		{"3000", "3000"},
		{"", ""},
		{`\@not-a-secret`, "@not-a-secret"},
		{"a@b", "a@b"},
	}
	for _, tt := range tests {
		got, err := r.Resolve(context.Background(), tt.in)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", tt.in, err)
		}
		if got.IsSecret() || got.Literal != tt.want {
			t.Errorf("Resolve(%q) = %v, want literal %q", tt.in, got, tt.want)
		}
	}
	if lister.calls != 0 {
		t.Errorf("expected no secret fetch for literals, got %d", lister.calls)
	}
}

func TestResolve_ByNameAndUID(t *testing.T) {
	lister := &fakeLister{secrets: []model.Secret{
		{UID: "sec_1", Name: "mysql-password"},
		{UID: "sec_2", Name: "api-key"},
	}}
	r := NewResolver(lister)

	got, err := r.Resolve(context.Background(), "@mysql-password")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.SecretUID != "sec_1" {
		t.Errorf("expected uid sec_1, got %v", got)
	}

	again, err := r.Resolve(context.Background(), "@mysql-password")
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if again != got {
		t.Errorf("resolving twice gave %v then %v", got, again)
	}

	byUID, err := r.Resolve(context.Background(), "@sec_2")
	if err != nil {
		t.Fatalf("Resolve by uid failed: %v", err)
	}
	if byUID.SecretUID != "sec_2" {
		t.Errorf("expected uid sec_2, got %v", byUID)
	}

	if lister.calls != 1 {
		t.Errorf("expected secrets to be fetched once, got %d", lister.calls)
	}
}

func TestResolve_Errors(t *testing.T) {
	lister := &fakeLister{secrets: []model.Secret{
		{UID: "sec_1", Name: "dup"},
		{UID: "sec_2", Name: "dup"},
	}}
	r := NewResolver(lister)

	tests := []struct {
		in       string
		wantSlug string
		contains string
	}{
		{"@", "env-empty-reference", "Empty reference"},
		{"@missing-secret", "env-no-secret", "missing-secret"},
		{"@dup", "env-ambiguous-secret", "matches 2 secrets"},
	}
	for _, tt := range tests {
		_, err := r.Resolve(context.Background(), tt.in)
		var ie *model.InputError
		if !errors.As(err, &ie) {
			t.Fatalf("Resolve(%q): expected InputError, got %v", tt.in, err)
		}
		if ie.Slug != tt.wantSlug {
			t.Errorf("Resolve(%q) slug = %q, want %q", tt.in, ie.Slug, tt.wantSlug)
		}
		if !strings.Contains(ie.Message, tt.contains) {
			t.Errorf("Resolve(%q) message %q does not contain %q", tt.in, ie.Message, tt.contains)
		}
	}
}

func TestResolve_FetchOnceUnderConcurrency(t *testing.T) {
	lister := &fakeLister{secrets: []model.Secret{{UID: "sec_1", Name: "a"}}}
	r := NewResolver(lister)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(context.Background(), "@a"); err != nil {
				t.Errorf("Resolve failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if lister.calls != 1 {
		t.Errorf("expected one fetch, got %d", lister.calls)
	}
}

func TestResolve_ListError(t *testing.T) {
	lister := &fakeLister{err: errors.New("boom")}
	r := NewResolver(lister)
	for _, ref := range []string{"@a", "@b", "@c"} {
		_, err := r.Resolve(context.Background(), ref)
		if err == nil || !strings.Contains(err.Error(), "boom") {
			t.Fatalf("%s: expected list error, got %v", ref, err)
		}
	}
	if lister.calls != 1 {
		t.Errorf("expected one fetch despite the failure, got %d", lister.calls)
	}
}
