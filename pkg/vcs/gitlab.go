package vcs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gr-thach/cli-repo-sub003/pkg/acl"
)

const gitlabDefaultURL = "https://gitlab.com"

// gitlab access levels; 40 is maintainer.
const gitlabMaintainerLevel = 40

// GitlabClient lists the projects a token may access on GitLab.
type GitlabClient struct {
	baseURL string
	timeout time.Duration
}

// NewGitlabClient builds a client for the given base URL. An empty URL
// targets gitlab.com.
func NewGitlabClient(baseURL string, timeout time.Duration) *GitlabClient {
	if baseURL == "" {
		baseURL = gitlabDefaultURL
	}
	return &GitlabClient{baseURL: baseURL, timeout: timeout}
}

type gitlabProject struct {
	ID        int64 `json:"id"`
	Namespace struct {
		ID   int64  `json:"id"`
		Path string `json:"path"`
	} `json:"namespace"`
	Permissions struct {
		ProjectAccess *struct {
			AccessLevel int `json:"access_level"`
		} `json:"project_access"`
		GroupAccess *struct {
			AccessLevel int `json:"access_level"`
		} `json:"group_access"`
	} `json:"permissions"`
}

func (p gitlabProject) accessLevel() int {
	level := 0
	if p.Permissions.ProjectAccess != nil {
		level = p.Permissions.ProjectAccess.AccessLevel
	}
	if p.Permissions.GroupAccess != nil && p.Permissions.GroupAccess.AccessLevel > level {
		level = p.Permissions.GroupAccess.AccessLevel
	}
	return level
}

// AllowedAccounts walks the membership project listing and groups project
// ids by namespace. Maintainer level and above counts as admin.
func (c *GitlabClient) AllowedAccounts(ctx context.Context, token string) (acl.AllowedAccounts, error) {
	client := tokenClient(ctx, token, c.timeout)
	snapshot := acl.AllowedAccounts{}

	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/api/v4/projects?membership=true&per_page=100&page=%d", c.baseURL, page)
		var projects []gitlabProject
		if err := getJSON(ctx, client, url, &projects); err != nil {
			return nil, fmt.Errorf("gitlab: %w", err)
		}
		if len(projects) == 0 {
			break
		}

		for _, project := range projects {
			key := strconv.FormatInt(project.Namespace.ID, 10)
			access := snapshot[key]
			access.Login = project.Namespace.Path
			access.Provider = ProviderGitlab
			if project.accessLevel() >= gitlabMaintainerLevel {
				access.AllowedRepositories.Admin = append(access.AllowedRepositories.Admin, project.ID)
			}
			access.AllowedRepositories.Read = append(access.AllowedRepositories.Read, project.ID)
			snapshot[key] = access
		}

		if len(projects) < 100 {
			break
		}
	}
	return snapshot, nil
}
