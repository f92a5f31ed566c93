// Package cli provides terminal prompts, clipboard access and detection of
// the external tools the deploy flow shells out to.
package cli

import (
	"context"
	"os/exec"
	"regexp"
	"strings"

	"github.com/bartdeslagmulder/now-cli/internal/model"
	"github.com/bartdeslagmulder/now-cli/internal/output"
)

// DependencyChecker handles detection of CLI tools
type DependencyChecker struct {
	out      *output.Output
	lookPath func(string) (string, error)
}

// NewDependencyChecker creates a new dependency checker reporting to out
func NewDependencyChecker(out *output.Output) *DependencyChecker {
	return &DependencyChecker{out: out, lookPath: exec.LookPath}
}

// DependencyStatus represents the status of a CLI tool
type DependencyStatus struct {
	Name      string
	Installed bool
	Version   string
	Required  bool
	Message   string
}

var gitVersionRe = regexp.MustCompile(`git version (\d+\.\d+(?:\.\d+)?)`)

// CheckGit checks if git is installed. It is needed to deploy repositories.
func (d *DependencyChecker) CheckGit() DependencyStatus {
	status := DependencyStatus{
		Name:     "git",
		Required: true,
	}

	path, err := d.lookPath("git")
	if err != nil {
		status.Message = "git is not installed"
		d.debugf("git lookup failed: %v", err)
		return status
	}

	status.Installed = true

	out, err := exec.CommandContext(context.Background(), path, "--version").Output()
	if err == nil {
		status.Version = strings.TrimSpace(string(out))
		if m := gitVersionRe.FindStringSubmatch(status.Version); len(m) == 2 {
			status.Version = m[1]
		}
	}
	d.debugf("using git at %s (version %q)", path, status.Version)

	return status
}

func (d *DependencyChecker) debugf(format string, args ...any) {
	if d.out != nil {
		d.out.Debugf(format, args...)
	}
}

// RequireGit returns an input error when git is missing
func (d *DependencyChecker) RequireGit() error {
	if st := d.CheckGit(); !st.Installed {
		return model.InputErrorf("missing-git", "Deploying a repository requires git, but %s", st.Message)
	}
	return nil
}
