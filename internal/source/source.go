package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bartdeslagmulder/now-cli/internal/gitrepo"
	"github.com/bartdeslagmulder/now-cli/internal/manifest"
	"github.com/bartdeslagmulder/now-cli/internal/model"
	"github.com/bartdeslagmulder/now-cli/internal/output"
)

// Origin says where the deployment content comes from
type Origin int

const (
	LocalFile Origin = iota
	LocalDirectory
	RemoteRepository
)

func (o Origin) String() string {
	switch o {
	case LocalFile:
		return "file"
	case LocalDirectory:
		return "directory"
	case RemoteRepository:
		return "repository"
	default:
		return "unknown"
	}
}

// SearchDelay is how long the "Searching on <host>" notice is held back
const SearchDelay = 500 * time.Millisecond

// Source is a resolved deployment source
type Source struct {
	Origin Origin
	Paths  []string
	Type   model.DeploymentType
	Name   string
	// Meta is nil when no manifest was inspected (single file, multiple paths)
	Meta *manifest.Metadata
	// Repo is set for RemoteRepository and owns the temporary checkout
	Repo *gitrepo.Checkout
}

// Config returns the project configuration, empty when there is none
func (s *Source) Config() manifest.Config {
	if s.Meta == nil {
		return manifest.Config{}
	}
	return s.Meta.Config
}

// Request is what the caller knows about the source before resolution
type Request struct {
	// Args are the arguments exactly as typed; Paths are the same made absolute
	Args  []string
	Paths []string
	// ForcedType comes from --npm/--docker/--static
	ForcedType model.DeploymentType
	Name       string
	// Repo is an already materialized checkout from an earlier attempt
	Repo *gitrepo.Checkout
}

// RepoFetcher materializes a remote repository onto local storage
type RepoFetcher interface {
	Fetch(ctx context.Context, ref gitrepo.Ref) (*gitrepo.Checkout, error)
}

// Chooser asks the user to pick one of several options
type Chooser interface {
	PromptOption(ctx context.Context, message string, options []string) (string, error)
}

// InspectFunc inspects the manifests of a directory
type InspectFunc func(dir string, opts manifest.Options) (*manifest.Metadata, error)

// Resolver turns command-line paths into a Source
type Resolver struct {
	Fetcher RepoFetcher
	Inspect InspectFunc
	// Chooser is nil when the session is not interactive
	Chooser Chooser
	Out     *output.Output
	HomeDir string
	// SearchDelay overrides the package default when non-zero
	SearchDelay time.Duration
}

// Resolve classifies the source and determines its type and name. When a
// repository was fetched and resolution then fails, the checkout is released
// before returning.
func (r *Resolver) Resolve(ctx context.Context, req Request) (src *Source, err error) {
	if len(req.Paths) == 0 {
		return nil, model.InputErrorf("missing-path", "No path to deploy")
	}

	if req.Repo != nil {
		return r.resolveDir(ctx, &Source{Origin: RemoteRepository, Paths: []string{req.Repo.Path}, Repo: req.Repo}, req)
	}

	if len(req.Paths) > 1 {
		return r.resolveMany(req)
	}

	path := req.Paths[0]
	info, statErr := os.Stat(path)
	if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", path, statErr)
	}
	if statErr != nil {
		raw := path
		if len(req.Args) > 0 {
			raw = req.Args[0]
		}
		co, err := r.searchRepo(ctx, raw)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err != nil {
				co.Cleanup()
			}
		}()
		return r.resolveDir(ctx, &Source{Origin: RemoteRepository, Paths: []string{co.Path}, Repo: co}, req)
	}

	if !info.IsDir() {
		name := req.Name
		if name == "" {
			name = "file"
		}
		return &Source{Origin: LocalFile, Paths: []string{path}, Type: model.TypeStatic, Name: name}, nil
	}

	if err := r.checkDeployable(path); err != nil {
		return nil, err
	}
	return r.resolveDir(ctx, &Source{Origin: LocalDirectory, Paths: []string{path}}, req)
}

func (r *Resolver) resolveMany(req Request) (*Source, error) {
	for i, p := range req.Paths {
		if _, err := os.Stat(p); err != nil {
			arg := p
			if i < len(req.Args) {
				arg = req.Args[i]
			}
			return nil, model.InputErrorf("path-not-found", "The specified file or directory %q doesn't exist.", arg)
		}
	}
	name := req.Name
	if name == "" {
		name = "files"
	}
	return &Source{Origin: LocalDirectory, Paths: req.Paths, Type: model.TypeStatic, Name: name}, nil
}

// searchRepo treats a missing local path as a repository reference. Any
// failure to materialize the repository other than an input error is
// reported as "not found".
func (r *Resolver) searchRepo(ctx context.Context, raw string) (*gitrepo.Checkout, error) {
	ref, ok, err := gitrepo.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.InputErrorf("path-not-found", "The specified directory %q doesn't exist.", raw)
	}
	if r.Fetcher == nil {
		return nil, &gitrepo.NotFoundError{Ref: ref}
	}

	delay := r.SearchDelay
	if delay == 0 {
		delay = SearchDelay
	}
	stop := r.out().Wait(fmt.Sprintf("Didn't find directory. Searching on %s...", ref.Host), delay)
	co, err := r.Fetcher.Fetch(ctx, ref)
	stop()
	if err != nil {
		if model.IsInputError(err) {
			return nil, err
		}
		var nf *gitrepo.NotFoundError
		if errors.As(err, &nf) {
			r.out().Debugf("repository %s not found: %v", ref, nf.Cause)
			return nil, nf
		}
		r.out().Debugf("repository lookup for %s failed: %v", ref, err)
		return nil, &gitrepo.NotFoundError{Ref: ref, Cause: err}
	}
	return co, nil
}

// resolveDir inspects a single directory, prompting for a type when more
// than one manifest matches and a chooser is available.
func (r *Resolver) resolveDir(ctx context.Context, src *Source, req Request) (*Source, error) {
	inspect := r.Inspect
	if inspect == nil {
		inspect = manifest.Inspect
	}

	forced := req.ForcedType
	for {
		meta, err := inspect(src.Paths[0], manifest.Options{Type: forced, Name: req.Name})
		if err == nil {
			src.Meta = meta
			src.Type = meta.Type
			src.Name = meta.Name
			return src, nil
		}

		var mm *manifest.MultipleManifestsError
		if !errors.As(err, &mm) || r.Chooser == nil || forced != "" {
			return nil, err
		}

		options := make([]string, len(mm.Candidates))
		for i, c := range mm.Candidates {
			options[i] = string(c)
		}
		choice, err := r.Chooser.PromptOption(ctx, "Multiple manifests found. Which one do you want to deploy?", options)
		if err != nil {
			return nil, err
		}
		forced = model.DeploymentType(choice)
	}
}

func (r *Resolver) checkDeployable(path string) error {
	clean := filepath.Clean(path)
	if clean == string(filepath.Separator) {
		return model.InputErrorf("path-not-deployable", "You're trying to deploy your root directory.")
	}
	home := r.HomeDir
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	if home != "" && clean == filepath.Clean(home) {
		return model.InputErrorf("path-not-deployable", "You're trying to deploy your home directory.")
	}
	return nil
}

func (r *Resolver) out() *output.Output {
	if r.Out == nil {
		return output.Discard()
	}
	return r.Out
}
