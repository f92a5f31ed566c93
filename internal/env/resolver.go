package env

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bartdeslagmulder/now-cli/internal/model"
	"github.com/bartdeslagmulder/now-cli/internal/output"
	"golang.org/x/sync/errgroup"
)

var keyRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// EscapedSigil marks a literal value that starts with "@" so it is not
// taken for a secret reference.
const EscapedSigil = `\@`

// Prompter asks the user for the values of env keys in a single round
type Prompter interface {
	PromptFields(ctx context.Context, keys []string) (map[string]string, error)
}

// ValueResolver turns a prompted/inherited/literal string into its final
// value, following @secret references.
type ValueResolver interface {
	Resolve(ctx context.Context, value string) (model.EnvValue, error)
}

// Resolver produces the final deployment env from merged sources
type Resolver struct {
	Prompter  Prompter
	Values    ValueResolver
	LookupEnv func(string) (string, bool)
	Out       *output.Output
}

// Resolve runs the prompt, inherit, key validation and secret steps in that
// order. Any failure is fatal for the deployment attempt.
func (r *Resolver) Resolve(ctx context.Context, merged *Merged) (map[string]model.EnvValue, error) {
	keys := merged.Keys()
	values := make(map[string]string, len(keys))

	var askFor []string
	for _, k := range keys {
		v, _ := merged.Get(k)
		if v.Kind == KindPrompt {
			askFor = append(askFor, k)
		}
	}

	answers, err := r.prompt(ctx, askFor)
	if err != nil {
		return nil, err
	}

	for _, k := range keys {
		v, _ := merged.Get(k)
		switch v.Kind {
		case KindPrompt:
			values[k] = answers[k]
		case KindInherit:
			inherited, err := r.inherit(k)
			if err != nil {
				return nil, err
			}
			values[k] = inherited
		default:
			values[k] = v.Literal
		}
	}

	for _, k := range keys {
		if err := ValidateKey(k); err != nil {
			return nil, err
		}
	}

	return r.resolveValues(ctx, keys, values)
}

func (r *Resolver) prompt(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}
	if r.Prompter == nil {
		return nil, model.InputErrorf("missing-env-value",
			"No value specified for env %q and the session is not interactive", keys[0])
	}

	r.log("Please enter values for the following environment variables:")
	answers, err := r.Prompter.PromptFields(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to read env values: %w", err)
	}
	for _, k := range keys {
		if answers[k] == "" {
			return nil, model.InputErrorf("missing-env-value", "Enter a value for %s", k)
		}
	}
	return answers, nil
}

func (r *Resolver) inherit(key string) (string, error) {
	lookup := r.LookupEnv
	if lookup == nil {
		return "", model.InputErrorf("missing-env-value",
			"No value specified for env %q and it was not found in your env.", key)
	}
	v, ok := lookup(key)
	if !ok {
		return "", model.InputErrorf("missing-env-value",
			"No value specified for env %q and it was not found in your env.", key)
	}
	r.log("Reading %q from your env (as no value was specified)", key)
	if strings.HasPrefix(v, "@") {
		v = EscapedSigil + v[1:]
	}
	return v, nil
}

// resolveValues resolves every value concurrently. When several fail, the
// error for the earliest key is reported.
func (r *Resolver) resolveValues(ctx context.Context, keys []string, values map[string]string) (map[string]model.EnvValue, error) {
	resolved := make([]model.EnvValue, len(keys))
	errs := make([]error, len(keys))

	var g errgroup.Group
	g.SetLimit(8)
	for i, k := range keys {
		g.Go(func() error {
			v, err := r.Values.Resolve(ctx, values[k])
			if err != nil {
				errs[i] = err
				return err
			}
			resolved[i] = v
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := make(map[string]model.EnvValue, len(keys))
	for i, k := range keys {
		out[k] = resolved[i]
	}
	return out, nil
}

func (r *Resolver) log(format string, args ...any) {
	if r.Out != nil {
		r.Out.Log(format, args...)
	}
}

// ValidateKey checks that an env key is non-empty and only uses letters,
// digits and underscores.
func ValidateKey(key string) error {
	if key == "" {
		return model.InputErrorf("missing-env-key-value", "Environment variable name is missing")
	}
	if !keyRe.MatchString(key) {
		return model.InputErrorf("invalid-env-key",
			"Invalid -e key %q. Only letters, digits and underscores are allowed.", key)
	}
	return nil
}
