package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bartdeslagmulder/now-cli/internal/gitrepo"
	"github.com/google/go-github/v56/github"
	"golang.org/x/oauth2"
)

// Client looks up repositories on GitHub
type Client struct {
	client *github.Client
}

func NewClient(token string) *Client {
	var client *github.Client

	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc := oauth2.NewClient(context.Background(), ts)
		client = github.NewClient(tc)
	} else {
		client = github.NewClient(nil)
	}

	return &Client{client: client}
}

// NewClientWithBaseURL creates a client that talks to a custom API root
func NewClientWithBaseURL(token, baseURL string) (*Client, error) {
	c := NewClient(token)
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
	}
	c.client.BaseURL = u
	return c, nil
}

// ResolveRef returns the commit SHA that ref points to in owner/repo. An
// empty ref means the repository's default branch. A missing repository or
// ref yields a *gitrepo.NotFoundError.
func (c *Client) ResolveRef(ctx context.Context, owner, repo, ref string) (string, error) {
	target := gitrepo.Ref{Host: gitrepo.GitHub, Owner: owner, Name: repo, Ref: ref}

	if ref == "" {
		r, resp, err := c.client.Repositories.Get(ctx, owner, repo)
		if err != nil {
			if isNotFound(resp, err) {
				return "", &gitrepo.NotFoundError{Ref: target, Cause: err}
			}
			return "", fmt.Errorf("failed to look up %s/%s: %w", owner, repo, err)
		}
		ref = r.GetDefaultBranch()
	}

	sha, resp, err := c.client.Repositories.GetCommitSHA1(ctx, owner, repo, ref, "")
	if err != nil {
		if isNotFound(resp, err) {
			return "", &gitrepo.NotFoundError{Ref: target, Cause: err}
		}
		return "", fmt.Errorf("failed to resolve %s/%s#%s: %w", owner, repo, ref, err)
	}

	return sha, nil
}

func isNotFound(resp *github.Response, err error) bool {
	if resp != nil && resp.Response != nil {
		switch resp.StatusCode {
		case http.StatusNotFound, http.StatusUnprocessableEntity:
			return true
		}
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode == http.StatusNotFound
	}
	return false
}
