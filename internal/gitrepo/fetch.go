package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sync"
)

// NotFoundError means the referenced repository (or ref) does not exist or
// could not be retrieved.
type NotFoundError struct {
	Ref   Ref
	Cause error
}

func (e *NotFoundError) Error() string {
	if e.Ref.Ref != "" {
		return fmt.Sprintf("There's no repository named %q with %q on %s", e.Ref.Main(), e.Ref.Ref, e.Ref.Host)
	}
	return fmt.Sprintf("There's no repository named %q on %s", e.Ref.Main(), e.Ref.Host)
}

func (e *NotFoundError) Unwrap() error {
	return e.Cause
}

// RefChecker confirms that a repository and ref exist before cloning
type RefChecker interface {
	ResolveRef(ctx context.Context, owner, repo, ref string) (string, error)
}

// Runner runs a git command; dir may be empty
type Runner func(ctx context.Context, dir string, args ...string) ([]byte, error)

// Checkout is a repository materialized in a temporary directory. It owns
// the directory: Cleanup removes it and runs at most once.
type Checkout struct {
	Ref  Ref
	Path string

	once sync.Once
	err  error
}

// Cleanup removes the temporary directory. Safe to call more than once.
func (c *Checkout) Cleanup() error {
	c.once.Do(func() {
		c.err = os.RemoveAll(c.Path)
	})
	return c.err
}

// Fetcher materializes remote repositories onto local storage
type Fetcher struct {
	// GitHub, when set, is asked to confirm GitHub repositories and refs
	GitHub RefChecker
	// Run executes git. Defaults to the git binary on PATH.
	Run Runner
	// TempDir is the parent for checkouts. Defaults to os.TempDir().
	TempDir string
}

var commitRe = regexp.MustCompile(`^[0-9a-f]{7,40}$`)

// Fetch clones ref into a new temporary directory
func (f *Fetcher) Fetch(ctx context.Context, ref Ref) (*Checkout, error) {
	if ref.Host == GitHub && f.GitHub != nil {
		if _, err := f.GitHub.ResolveRef(ctx, ref.Owner, ref.Name, ref.Ref); err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				nf.Ref = ref
				return nil, nf
			}
			return nil, err
		}
	}

	dir, err := os.MkdirTemp(f.TempDir, "now-repo-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	co := &Checkout{Ref: ref, Path: dir}

	if err := f.clone(ctx, ref, dir); err != nil {
		co.Cleanup()
		return nil, &NotFoundError{Ref: ref, Cause: err}
	}
	return co, nil
}

func (f *Fetcher) clone(ctx context.Context, ref Ref, dir string) error {
	run := f.Run
	if run == nil {
		run = runGit
	}

	switch {
	case ref.Ref == "":
		_, err := run(ctx, "", "clone", "--depth", "1", ref.CloneURL(), dir)
		return err
	case commitRe.MatchString(ref.Ref):
		// commits can't be cloned by name; fetch the history and check out
		if _, err := run(ctx, "", "clone", ref.CloneURL(), dir); err != nil {
			return err
		}
		_, err := run(ctx, dir, "checkout", "--quiet", ref.Ref)
		return err
	default:
		_, err := run(ctx, "", "clone", "--depth", "1", "--branch", ref.Ref, ref.CloneURL(), dir)
		return err
	}
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("git %s failed: %w\n%s", args[0], err, string(out))
	}
	return out, nil
}
