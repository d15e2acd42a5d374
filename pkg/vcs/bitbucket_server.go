package vcs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gr-thach/cli-repo-sub003/pkg/acl"
)

// BitbucketServerClient lists the repositories a token may access on a
// Bitbucket Data Center instance.
type BitbucketServerClient struct {
	baseURL string
	timeout time.Duration
}

// NewBitbucketServerClient builds a client for the given instance URL.
func NewBitbucketServerClient(baseURL string, timeout time.Duration) *BitbucketServerClient {
	return &BitbucketServerClient{baseURL: baseURL, timeout: timeout}
}

type bitbucketRepository struct {
	ID      int64 `json:"id"`
	Project struct {
		ID  int64  `json:"id"`
		Key string `json:"key"`
	} `json:"project"`
}

type bitbucketPage struct {
	Values        []bitbucketRepository `json:"values"`
	IsLastPage    bool                  `json:"isLastPage"`
	NextPageStart int                   `json:"nextPageStart"`
}

// AllowedAccounts lists repositories once per permission level and groups
// them by owning project.
func (c *BitbucketServerClient) AllowedAccounts(ctx context.Context, token string) (acl.AllowedAccounts, error) {
	client := tokenClient(ctx, token, c.timeout)
	snapshot := acl.AllowedAccounts{}

	add := func(repo bitbucketRepository, admin bool) {
		key := strconv.FormatInt(repo.Project.ID, 10)
		access := snapshot[key]
		access.Login = repo.Project.Key
		access.Provider = ProviderBitbucketServer
		if admin {
			access.AllowedRepositories.Admin = append(access.AllowedRepositories.Admin, repo.ID)
		} else {
			access.AllowedRepositories.Read = append(access.AllowedRepositories.Read, repo.ID)
		}
		snapshot[key] = access
	}

	for _, permission := range []string{"REPO_READ", "REPO_ADMIN"} {
		start := 0
		for {
			url := fmt.Sprintf("%s/rest/api/1.0/repos?permission=%s&limit=100&start=%d", c.baseURL, permission, start)
			var page bitbucketPage
			if err := getJSON(ctx, client, url, &page); err != nil {
				return nil, fmt.Errorf("bitbucket server: %w", err)
			}
			for _, repo := range page.Values {
				add(repo, permission == "REPO_ADMIN")
			}
			if page.IsLastPage || len(page.Values) == 0 {
				break
			}
			start = page.NextPageStart
		}
	}
	return snapshot, nil
}
