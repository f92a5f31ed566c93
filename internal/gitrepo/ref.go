package gitrepo

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/bartdeslagmulder/now-cli/internal/model"
)

// Host is a supported git hosting provider
type Host int

const (
	GitHub Host = iota
	GitLab
	Bitbucket
)

var hostDomains = map[string]Host{
	"github.com":    GitHub,
	"gitlab.com":    GitLab,
	"bitbucket.org": Bitbucket,
}

func (h Host) String() string {
	switch h {
	case GitLab:
		return "GitLab"
	case Bitbucket:
		return "Bitbucket"
	default:
		return "GitHub"
	}
}

// Domain returns the provider's web domain
func (h Host) Domain() string {
	switch h {
	case GitLab:
		return "gitlab.com"
	case Bitbucket:
		return "bitbucket.org"
	default:
		return "github.com"
	}
}

// Ref identifies a repository and an optional ref on a hosting provider
type Ref struct {
	Host  Host
	Owner string
	Name  string
	Ref   string
}

// Main returns "owner/name"
func (r Ref) Main() string {
	return r.Owner + "/" + r.Name
}

// CloneURL returns the https clone URL
func (r Ref) CloneURL() string {
	return fmt.Sprintf("https://%s/%s.git", r.Host.Domain(), r.Main())
}

func (r Ref) String() string {
	if r.Ref == "" {
		return r.Main()
	}
	return r.Main() + "#" + r.Ref
}

var shortPathRe = regexp.MustCompile(`^[^\s\\/#]+/[^\s\\/#]+$`)

// Parse interprets raw as a repository reference. Accepted forms:
//
//	owner/repo[#ref]
//	gitlab.com/owner/repo[#ref]
//	https://bitbucket.org/owner/repo[.git][#ref]
//
// ok is false when raw does not look like a repository reference at all.
// A URL to an unsupported host is an input error.
func Parse(raw string) (ref Ref, ok bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, false, nil
	}

	path, fragment, _ := strings.Cut(raw, "#")

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		u, perr := url.Parse(path)
		if perr != nil {
			return Ref{}, false, model.InputErrorf("invalid-url", "The URL %q is not valid", raw)
		}
		host, known := hostDomains[strings.TrimPrefix(strings.ToLower(u.Host), "www.")]
		if !known {
			return Ref{}, false, model.InputErrorf("invalid-url",
				"The URL %q is not a supported repository host (GitHub, GitLab or Bitbucket)", raw)
		}
		owner, name, ok := splitOwnerRepo(strings.Trim(u.Path, "/"))
		if !ok {
			return Ref{}, false, nil
		}
		return Ref{Host: host, Owner: owner, Name: name, Ref: fragment}, true, nil
	}

	host := GitHub
	for domain, h := range hostDomains {
		if strings.HasPrefix(path, domain+"/") {
			host = h
			path = strings.TrimPrefix(path, domain+"/")
			break
		}
	}

	owner, name, ok := splitOwnerRepo(path)
	if !ok {
		return Ref{}, false, nil
	}
	return Ref{Host: host, Owner: owner, Name: name, Ref: fragment}, true, nil
}

func splitOwnerRepo(path string) (string, string, bool) {
	path = strings.TrimSuffix(path, ".git")
	if !shortPathRe.MatchString(path) {
		return "", "", false
	}
	owner, name, _ := strings.Cut(path, "/")
	if owner == "." || owner == ".." || name == "." || name == ".." {
		return "", "", false
	}
	return owner, name, true
}
