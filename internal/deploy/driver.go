package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bartdeslagmulder/now-cli/internal/api"
	"github.com/bartdeslagmulder/now-cli/internal/env"
	"github.com/bartdeslagmulder/now-cli/internal/logstream"
	"github.com/bartdeslagmulder/now-cli/internal/model"
	"github.com/bartdeslagmulder/now-cli/internal/output"
	"github.com/bartdeslagmulder/now-cli/internal/regions"
	"github.com/bartdeslagmulder/now-cli/internal/secrets"
	"github.com/bartdeslagmulder/now-cli/internal/source"
	"github.com/bartdeslagmulder/now-cli/internal/upload"
	"github.com/cenkalti/backoff/v5"
)

// ErrAborted means the user declined to continue
var ErrAborted = errors.New("aborted")

// errRestart asks Run to start over from source resolution
var errRestart = errors.New("restart deployment")

// maxAttempts bounds restarts after the plan-upgrade confirmation
const maxAttempts = 2

// API is the part of the hosting API the driver uses
type API interface {
	CreateDeployment(ctx context.Context, req *model.DeploymentRequest) (*model.Deployment, error)
	ListSecrets(ctx context.Context) ([]model.Secret, error)
	UploadFile(ctx context.Context, file model.File, content io.Reader) error
	OpenEvents(ctx context.Context, deploymentID string) (io.ReadCloser, error)
}

// SourceResolver classifies the paths being deployed
type SourceResolver interface {
	Resolve(ctx context.Context, req source.Request) (*source.Source, error)
}

// Prompter asks the user for env values and confirmations
type Prompter interface {
	env.Prompter
	Confirm(ctx context.Context, question string) (bool, error)
}

// Clipboard receives the deployment URL
type Clipboard interface {
	Copy(text string) error
}

// Scope is who the deployment is created for
type Scope struct {
	TeamID   string
	TeamSlug string
	Username string
	Email    string
}

// Name returns the most readable identifier of the scope
func (s Scope) Name() string {
	switch {
	case s.TeamSlug != "":
		return s.TeamSlug
	case s.Username != "":
		return s.Username
	default:
		return s.Email
	}
}

// Options are the user's choices for one deployment
type Options struct {
	// Args are the paths as typed; Paths are the same made absolute
	Args            []string
	Paths           []string
	Name            string
	SessionAffinity string
	Regions         []string
	ForcedType      model.DeploymentType
	// Env holds repeated -e KEY[=value] flags
	Env []string
	// Dotenv is the --dotenv file, "" when the flag was not given
	Dotenv      string
	ForceNew    bool
	Public      bool
	ForwardNpm  bool
	NoClipboard bool
	// Links includes symlinked files with their target's content
	Links bool
}

// Driver runs deployments from source resolution to a terminal state
type Driver struct {
	API     API
	Sources SourceResolver
	// Prompter is only used when Interactive is set
	Prompter    Prompter
	Clipboard   Clipboard
	Logs        func(deploymentID string) logstream.Transport
	Collect     func(paths []string) ([]model.File, error)
	Out         *output.Output
	Interactive bool
	Scope       Scope
	LookupEnv   func(string) (string, bool)
	// BackOff paces event feed reconnects
	BackOff backoff.BackOff
	HomeDir string
	Now     func() time.Time
}

// invocation is the state of one Run, carried across the plan-upgrade restart
type invocation struct {
	opts        Options
	wantsPublic bool
	showMessage bool
	source      *source.Source
	start       time.Time
	regions     []string
	regionsFrom string
	synced      int
	syncedBytes int64
}


// Run deploys opts. The temporary checkout of a remote repository is removed
// on every return path.
func (d *Driver) Run(ctx context.Context, opts Options) error {
	inv := &invocation{
		opts:        opts,
		wantsPublic: opts.Public,
		showMessage: true,
		start:       d.now(),
	}
	defer d.release(inv)

	for attempt := 1; ; attempt++ {
		err := d.sync(ctx, inv)
		if !errors.Is(err, errRestart) {
			return err
		}
		if attempt >= maxAttempts {
			return fmt.Errorf("deployment still requires a public plan after confirmation")
		}
		d.Out.Debugf("restarting deployment as public")
		inv.showMessage = false
	}
}

func (d *Driver) sync(ctx context.Context, inv *invocation) error {
	req := source.Request{
		Args:       inv.opts.Args,
		Paths:      inv.opts.Paths,
		ForcedType: inv.opts.ForcedType,
		Name:       inv.opts.Name,
	}
	if inv.source != nil {
		req.Repo = inv.source.Repo
	}
	src, err := d.Sources.Resolve(ctx, req)
	if err != nil {
		return err
	}
	inv.source = src
	cfg := src.Config()

	if inv.showMessage && d.Interactive {
		d.banner(src)
	}

	scale, err := d.resolveScale(inv, cfg.Regions, cfg.Scale)
	if err != nil {
		return err
	}

	envValues, err := d.resolveEnv(ctx, inv, src)
	if err != nil {
		return err
	}

	files, err := d.collect(inv, src.Paths)
	if err != nil {
		return err
	}

	request := &model.DeploymentRequest{
		Name:            src.Name,
		Type:            src.Type,
		Files:           files,
		Env:             envValues,
		Scale:           scale,
		SessionAffinity: inv.opts.SessionAffinity,
		ForceNew:        inv.opts.ForceNew,
		Public:          inv.wantsPublic,
		ForwardNpm:      inv.opts.ForwardNpm || cfg.ForwardNpm,
	}
	if src.Meta != nil && src.Meta.HasConfig {
		raw, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode project config: %w", err)
		}
		request.Config = raw
	}
	if err := request.Validate(); err != nil {
		return err
	}

	dep, err := d.API.CreateDeployment(ctx, request)
	if err != nil {
		return d.submitError(ctx, inv, err)
	}
	d.Out.Debugf("created deployment %s (%d files missing)", dep.ID, len(dep.Missing))

	coord := upload.NewCoordinator(files, dep.Missing, d.API)
	if coord.ChangedFileCount() > 0 {
		if err := d.upload(ctx, inv, coord); err != nil {
			return err
		}
		dep, err = d.API.CreateDeployment(ctx, request)
		if err != nil {
			return fmt.Errorf("failed to create deployment after upload: %w", err)
		}
	}

	d.printURL(inv, dep)
	return d.observe(ctx, inv, src, dep)
}

func (d *Driver) banner(src *source.Source) {
	who := d.Scope.Name()
	if src.Origin == source.RemoteRepository && src.Repo != nil {
		ref := src.Repo.Ref
		if ref.Ref != "" {
			d.Out.Log("Deploying %s repository %q at %q under %s", ref.Host, ref.Main(), ref.Ref, who)
		} else {
			d.Out.Log("Deploying %s repository %q under %s", ref.Host, ref.Main(), who)
		}
		return
	}

	paths := make([]string, len(src.Paths))
	for i, p := range src.Paths {
		paths[i] = d.humanPath(p)
	}
	d.Out.Log("Deploying %s under %s", strings.Join(paths, ", "), who)
}

// resolveScale picks --regions over config regions; config scale conflicts
// with either
func (d *Driver) resolveScale(inv *invocation, cfgRegions []string, cfgScale map[string]model.Scale) (map[string]model.Scale, error) {
	inv.regions, inv.regionsFrom = inv.opts.Regions, "--regions"
	if len(inv.regions) == 0 {
		inv.regions, inv.regionsFrom = cfgRegions, "regions"
	}
	return regions.Resolve(inv.opts.Regions, cfgRegions, cfgScale)
}

func (d *Driver) resolveEnv(ctx context.Context, inv *invocation, src *source.Source) (map[string]model.EnvValue, error) {
	cfg := src.Config()

	var dotenvEntries []env.Entry
	if path := d.dotenvPath(inv, src); path != "" {
		values, err := env.LoadDotenv(path)
		if err != nil {
			return nil, err
		}
		dotenvEntries = env.FromMap(values)
	}

	merged, duplicates := env.Merge(
		dotenvEntries,
		env.FromConfig(cfg.Env),
		env.ParseEntries(inv.opts.Env, env.KindInherit),
	)
	for _, key := range duplicates {
		d.Out.Note("Env key %q is set more than once, the last value wins", key)
	}

	var prompter env.Prompter
	if d.Interactive && d.Prompter != nil {
		prompter = d.Prompter
	}
	lookup := d.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	resolver := &env.Resolver{
		Prompter:  prompter,
		Values:    secrets.NewResolver(d.API),
		LookupEnv: lookup,
		Out:       d.Out,
	}
	return resolver.Resolve(ctx, merged)
}

// dotenvPath returns the dotenv file to read: the flag's file relative to the
// working directory, or the config's file relative to the project
func (d *Driver) dotenvPath(inv *invocation, src *source.Source) string {
	if inv.opts.Dotenv != "" {
		return inv.opts.Dotenv
	}
	path := src.Config().Dotenv.Path(env.DefaultDotenvFile)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(src.Paths[0], path)
}

func (d *Driver) collect(inv *invocation, paths []string) ([]model.File, error) {
	collect := d.Collect
	if collect == nil {
		collect = (&upload.Collector{FollowLinks: inv.opts.Links}).Collect
	}
	files, err := collect(paths)
	if err != nil {
		return nil, fmt.Errorf("failed to collect files: %w", err)
	}
	return files, nil
}

// submitError turns a rejected submission into a restart, an abort, or a
// fatal error
func (d *Driver) submitError(ctx context.Context, inv *invocation, err error) error {
	d.Out.Debugf("create deployment failed: %v", err)

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	if apiErr.Code == api.CodePlanRequiresPublic && !inv.wantsPublic {
		return d.confirmPublic(ctx, inv)
	}

	if apiErr.Keyword == "additionalProperties" && apiErr.DataPath == ".scale" {
		prop := apiErr.Param("additionalProperty")
		if len(inv.regions) > 0 {
			return model.InputErrorf("invalid-region-or-dc",
				"Invalid regions in `%s`: %s", inv.regionsFrom, strings.TrimSuffix(prop, "1"))
		}
		return model.InputErrorf("invalid-region-or-dc",
			"Invalid DC name for the `scale` option: %s", prop)
	}

	return err
}

func (d *Driver) confirmPublic(ctx context.Context, inv *invocation) error {
	who := "you are"
	if d.Scope.TeamID != "" {
		who = "your team is"
	}
	d.Out.Log("Your deployment's code and logs will be publicly accessible because %s subscribed to the OSS plan.", who)

	asked := false
	proceed := false
	if d.Interactive && d.Prompter != nil {
		var err error
		proceed, err = d.Prompter.Confirm(ctx, "Are you sure you want to proceed?")
		if err != nil {
			return fmt.Errorf("failed to read answer: %w", err)
		}
		asked = true
	}

	planURL := "https://zeit.co/account/plan"
	if d.Scope.TeamSlug != "" {
		planURL = fmt.Sprintf("https://zeit.co/teams/%s/settings/plan", d.Scope.TeamSlug)
	}
	d.Out.Note("You can use `now --public` or upgrade your plan (%s) to skip this prompt", planURL)

	if !proceed {
		if !asked {
			return model.InputErrorf("plan-requires-public", "If you agree with that, please run again with `--public`.")
		}
		return ErrAborted
	}

	inv.wantsPublic = true
	return errRestart
}

// release frees the temporary repository checkout, if any
func (d *Driver) release(inv *invocation) {
	if inv.source == nil || inv.source.Repo == nil {
		return
	}
	if err := inv.source.Repo.Cleanup(); err != nil {
		d.Out.Debugf("failed to remove repository checkout %s: %v", inv.source.Repo.Path, err)
	}
}

func (d *Driver) humanPath(p string) string {
	home := d.HomeDir
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	if home != "" && strings.HasPrefix(p, home+string(filepath.Separator)) {
		return "~" + strings.TrimPrefix(p, home)
	}
	return p
}

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
