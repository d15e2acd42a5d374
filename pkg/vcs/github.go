package vcs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gr-thach/cli-repo-sub003/pkg/acl"
)

const githubDefaultURL = "https://api.github.com"

// GithubClient lists the repositories a token may access on GitHub or a
// GitHub Enterprise instance.
type GithubClient struct {
	baseURL string
	timeout time.Duration
}

// NewGithubClient builds a client for the given API base URL. An empty URL
// targets github.com.
func NewGithubClient(baseURL string, timeout time.Duration) *GithubClient {
	if baseURL == "" {
		baseURL = githubDefaultURL
	}
	return &GithubClient{baseURL: baseURL, timeout: timeout}
}

type githubRepository struct {
	ID    int64 `json:"id"`
	Owner struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
	} `json:"owner"`
	Permissions struct {
		Admin bool `json:"admin"`
		Push  bool `json:"push"`
		Pull  bool `json:"pull"`
	} `json:"permissions"`
}

// AllowedAccounts walks the affiliated-repository listing and groups
// repository ids by owning account, split into read and admin access.
func (c *GithubClient) AllowedAccounts(ctx context.Context, token string) (acl.AllowedAccounts, error) {
	client := tokenClient(ctx, token, c.timeout)
	snapshot := acl.AllowedAccounts{}

	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/user/repos?per_page=100&page=%d", c.baseURL, page)
		var repos []githubRepository
		if err := getJSON(ctx, client, url, &repos); err != nil {
			return nil, fmt.Errorf("github: %w", err)
		}
		if len(repos) == 0 {
			break
		}

		for _, repo := range repos {
			key := strconv.FormatInt(repo.Owner.ID, 10)
			access := snapshot[key]
			access.Login = repo.Owner.Login
			access.Provider = ProviderGithub
			if repo.Permissions.Admin {
				access.AllowedRepositories.Admin = append(access.AllowedRepositories.Admin, repo.ID)
			}
			if repo.Permissions.Pull || repo.Permissions.Push {
				access.AllowedRepositories.Read = append(access.AllowedRepositories.Read, repo.ID)
			}
			snapshot[key] = access
		}

		if len(repos) < 100 {
			break
		}
	}
	return snapshot, nil
}
