// Package vcs provides the source-control provider clients the access-list
// synchronizer fetches from. Only the output shape matters to the rest of
// the gateway: a map of account id to readable and administered repository
// ids (acl.AllowedAccounts).
package vcs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/gr-thach/cli-repo-sub003/pkg/acl"
)

// Provider names as they appear in configuration and cache keys.
const (
	ProviderGithub          = "github"
	ProviderGitlab          = "gitlab"
	ProviderBitbucketServer = "bitbucket_server"
)

// Config holds the provider API endpoints. An empty URL falls back to the
// public cloud endpoint; Bitbucket Server has no cloud endpoint and stays
// disabled when unset.
type Config struct {
	GithubURL          string
	GitlabURL          string
	BitbucketServerURL string
	Timeout            time.Duration
}

// NewClients builds one client per configured provider.
func NewClients(cfg Config) map[string]acl.ProviderClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	clients := map[string]acl.ProviderClient{
		ProviderGithub: NewGithubClient(cfg.GithubURL, cfg.Timeout),
		ProviderGitlab: NewGitlabClient(cfg.GitlabURL, cfg.Timeout),
	}
	if cfg.BitbucketServerURL != "" {
		clients[ProviderBitbucketServer] = NewBitbucketServerClient(cfg.BitbucketServerURL, cfg.Timeout)
	}
	return clients
}

// tokenClient wraps the base HTTP client with a bearer-token transport.
func tokenClient(ctx context.Context, token string, timeout time.Duration) *http.Client {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := oauth2.NewClient(ctx, source)
	client.Timeout = timeout
	return client
}

// getJSON fetches a URL and decodes the JSON body into out. Non-2xx
// responses become errors carrying the status.
func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider request %s failed: %s: %s", url, resp.Status, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
