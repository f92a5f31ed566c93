package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bartdeslagmulder/now-cli/internal/model"
)

const (
	sigil        = "@"
	escapedSigil = `\@`
)

// Lister fetches the secrets visible to the current account or team
type Lister interface {
	ListSecrets(ctx context.Context) ([]model.Secret, error)
}

// Resolver resolves @name references against the secret list. The list is
// fetched at most once per Resolver; create one Resolver per deployment attempt.
type Resolver struct {
	lister Lister

	mu      sync.Mutex
	fetched bool
	secrets []model.Secret
	err     error
}

// NewResolver creates a Resolver backed by lister
func NewResolver(lister Lister) *Resolver {
	return &Resolver{lister: lister}
}

// Resolve returns the final value for a raw env string. Strings starting with
// "@" reference a secret by name or uid; strings starting with `\@` are
// literals that begin with "@"; anything else is returned as a literal.
func (r *Resolver) Resolve(ctx context.Context, value string) (model.EnvValue, error) {
	if strings.HasPrefix(value, escapedSigil) {
		return model.Literal(sigil + value[len(escapedSigil):]), nil
	}
	if !strings.HasPrefix(value, sigil) {
		return model.Literal(value), nil
	}

	ref := value[len(sigil):]
	if ref == "" {
		return model.EnvValue{}, model.InputErrorf("env-empty-reference", "Empty reference provided for env value %q", value)
	}

	matches, err := r.find(ctx, ref)
	if err != nil {
		return model.EnvValue{}, err
	}

	switch len(matches) {
	case 0:
		return model.EnvValue{}, model.InputErrorf("env-no-secret", "No secret found by uid or name %q", ref)
	case 1:
		return model.SecretRef(matches[0].UID), nil
	default:
		return model.EnvValue{}, model.InputErrorf("env-ambiguous-secret",
			"Ambiguous secret %q (matches %d secrets)", ref, len(matches))
	}
}

func (r *Resolver) find(ctx context.Context, uidOrName string) ([]model.Secret, error) {
	list, err := r.list(ctx)
	if err != nil {
		return nil, err
	}

	var matches []model.Secret
	for _, s := range list {
		if s.Name == uidOrName || s.UID == uidOrName {
			matches = append(matches, s)
		}
	}
	return matches, nil
}

// list returns the memoized secret list. The outcome of the single fetch,
// error included, is shared by every caller.
func (r *Resolver) list(ctx context.Context) ([]model.Secret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.fetched {
		r.fetched = true
		r.secrets, r.err = r.lister.ListSecrets(ctx)
		if r.err != nil {
			r.err = fmt.Errorf("failed to list secrets: %w", r.err)
		}
	}
	return r.secrets, r.err
}
