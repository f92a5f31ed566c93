package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bartdeslagmulder/now-cli/internal/api"
	"github.com/bartdeslagmulder/now-cli/internal/cli"
	"github.com/bartdeslagmulder/now-cli/internal/deploy"
	"github.com/bartdeslagmulder/now-cli/internal/env"
	"github.com/bartdeslagmulder/now-cli/internal/gitrepo"
	"github.com/bartdeslagmulder/now-cli/internal/github"
	"github.com/bartdeslagmulder/now-cli/internal/logstream"
	"github.com/bartdeslagmulder/now-cli/internal/model"
	"github.com/bartdeslagmulder/now-cli/internal/output"
	"github.com/bartdeslagmulder/now-cli/internal/source"
	"github.com/cenkalti/backoff/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var deployCmd = &cobra.Command{
	Use:   "deploy [path...]",
	Short: "Deploy a directory, a set of files, or a remote repository",
	Long: `Deploy the current directory, the given paths, or a remote repository.

Examples:
  now
  now ./site
  now index.html about.html
  now zeit/now-examples#master
  now --docker -e NODE_ENV=production -e API_KEY=@api-key
  now --regions sfo,bru --public`,
	Args: cobra.ArbitraryArgs,
	RunE: runDeploy,
}

func init() {
	addDeployFlags(deployCmd)
}

func addDeployFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("name", "n", "", "deployment name")
	f.StringP("session-affinity", "S", "", "session affinity, ip or random")
	f.StringSlice("regions", nil, "comma separated regions or DC ids to deploy to")
	f.BoolP("force", "f", false, "force a new deployment even if nothing has changed")
	f.BoolP("links", "l", false, "include symlinked files")
	f.BoolP("no-clipboard", "C", false, "do not copy the deployment URL to the clipboard")
	f.BoolP("forward-npm", "N", false, "forward npm login information to install private modules")
	f.Bool("docker", false, "deploy as a Docker project")
	f.Bool("npm", false, "deploy as an npm project")
	f.Bool("static", false, "deploy as static files")
	f.BoolP("public", "p", false, "deployment is public (code and logs are visible)")
	f.StringArrayP("env", "e", nil, "environment variable KEY[=value], repeatable")
	f.StringP("dotenv", "E", "", "read environment variables from a dotenv file")
	f.Lookup("dotenv").NoOptDefVal = env.DefaultDotenvFile

	cmd.MarkFlagsMutuallyExclusive("docker", "npm", "static")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	debug := viper.GetBool("debug")
	out := output.Default(debug)

	opts, err := deployOptions(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tokenFlag, _ := cmd.Flags().GetString("token")
	urlFlag, _ := cmd.Flags().GetString("api-url")
	teamFlag, _ := cmd.Flags().GetString("team")

	token := api.ResolveToken(tokenFlag)
	if token == "" {
		return model.InputErrorf("missing-token", "No API token found. Pass --token or set NOW_TOKEN.")
	}
	client := api.NewClient(token, api.ResolveURL(urlFlag), api.ResolveTeamID(teamFlag), out.Logger())

	interactive := cli.IsInteractive()
	home, _ := os.UserHomeDir()
	prompter := cli.NewPrompter()

	sources := &source.Resolver{
		Fetcher: newRepoFetcher(out),
		Out:     out,
		HomeDir: home,
	}
	if interactive {
		sources.Chooser = prompter
	}

	driver := &deploy.Driver{
		API:       client,
		Sources:   sources,
		Prompter:  prompter,
		Clipboard: cli.Clipboard{},
		Logs: func(deploymentID string) logstream.Transport {
			u, header := client.LogsEndpoint(deploymentID)
			return &logstream.WebSocket{URL: u, Header: header}
		},
		Out:         out,
		Interactive: interactive,
		Scope: deploy.Scope{
			TeamID:   client.TeamID(),
			TeamSlug: viper.GetString("team.slug"),
			Username: viper.GetString("user.username"),
			Email:    viper.GetString("user.email"),
		},
		LookupEnv: os.LookupEnv,
		BackOff:   backoff.NewExponentialBackOff(),
		HomeDir:   home,
	}

	out.Debugf("deploying %v (interactive=%v)", opts.Paths, interactive)
	return driver.Run(ctx, opts)
}

// deployOptions reads the deploy flags. No argument means the working
// directory.
func deployOptions(cmd *cobra.Command, args []string) (deploy.Options, error) {
	flags := cmd.Flags()

	opts := deploy.Options{Args: args}
	opts.Name, _ = flags.GetString("name")
	opts.SessionAffinity, _ = flags.GetString("session-affinity")
	opts.ForceNew, _ = flags.GetBool("force")
	opts.Links, _ = flags.GetBool("links")
	opts.NoClipboard, _ = flags.GetBool("no-clipboard")
	opts.Public, _ = flags.GetBool("public")
	opts.Env, _ = flags.GetStringArray("env")
	opts.Dotenv, _ = flags.GetString("dotenv")

	forwardNpm, _ := flags.GetBool("forward-npm")
	opts.ForwardNpm = forwardNpm || viper.GetBool("forward_npm")

	regionList, _ := flags.GetStringSlice("regions")
	for _, r := range regionList {
		if r = strings.TrimSpace(r); r != "" {
			opts.Regions = append(opts.Regions, r)
		}
	}

	for _, t := range []model.DeploymentType{model.TypeDocker, model.TypeNPM, model.TypeStatic} {
		if forced, _ := flags.GetBool(string(t)); forced {
			opts.ForcedType = t
		}
	}

	if len(args) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return opts, fmt.Errorf("failed to get working directory: %w", err)
		}
		opts.Paths = []string{wd}
		return opts, nil
	}

	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return opts, fmt.Errorf("failed to resolve %s: %w", arg, err)
		}
		opts.Paths = append(opts.Paths, abs)
	}
	return opts, nil
}

// repoFetcher checks for git before cloning
type repoFetcher struct {
	deps    *cli.DependencyChecker
	fetcher *gitrepo.Fetcher
}

func newRepoFetcher(out *output.Output) *repoFetcher {
	token := strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	if token == "" {
		token = viper.GetString("github.token")
	}
	return &repoFetcher{
		deps:    cli.NewDependencyChecker(out),
		fetcher: &gitrepo.Fetcher{GitHub: github.NewClient(token)},
	}
}

func (r *repoFetcher) Fetch(ctx context.Context, ref gitrepo.Ref) (*gitrepo.Checkout, error) {
	if err := r.deps.RequireGit(); err != nil {
		return nil, err
	}
	return r.fetcher.Fetch(ctx, ref)
}
