// Package coreapi is the HTTP client for the remote core data API: account
// lookups, the permissions grant matrix, and the thin repository and team
// listings the authorization flow needs. It implements the interfaces the
// permission engine consumes (permission.AccountSource, GrantSource).
package coreapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gr-thach/cli-repo-sub003/pkg/observability"
	"github.com/gr-thach/cli-repo-sub003/pkg/permission"
)

// ErrNotFound is returned when the core API has no record for a lookup.
var ErrNotFound = errors.New("record not found")

// Config holds the client connection settings.
type Config struct {
	// BaseURL is the core API root, e.g. http://core:3000.
	BaseURL string
	// Token authenticates the gateway against the core API.
	Token   string
	Timeout time.Duration

	// Metrics is optional; nil disables instrumentation.
	Metrics *observability.Metrics
}

// Client is the core data API client. Safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	metrics *observability.Metrics
}

// NewClient builds a client. No connectivity check happens here; the first
// request surfaces any misconfiguration.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		metrics: cfg.Metrics,
	}
}

// accountPayload mirrors the core API account shape.
type accountPayload struct {
	IDAccount       int64  `json:"idAccount"`
	IDRootAccount   int64  `json:"idRootAccount"`
	IDParentAccount *int64 `json:"idParentAccount"`
	Provider        string `json:"provider"`
	Login           string `json:"login"`
	Subscription    struct {
		Plan struct {
			Code string `json:"code"`
		} `json:"plan"`
	} `json:"subscription"`
}

func (p accountPayload) toAccount() (*permission.Account, error) {
	plan, err := permission.ParsePlanCode(p.Subscription.Plan.Code)
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", p.IDAccount, err)
	}
	return &permission.Account{
		ID:            p.IDAccount,
		RootAccountID: p.IDRootAccount,
		ParentID:      p.IDParentAccount,
		Provider:      p.Provider,
		Login:         p.Login,
		Plan:          plan,
	}, nil
}

// GetAccount fetches an account by id.
func (c *Client) GetAccount(ctx context.Context, id int64) (*permission.Account, error) {
	var payload accountPayload
	err := c.get(ctx, fmt.Sprintf("/accounts/%d", id), &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account %d: %w", id, err)
	}
	return payload.toAccount()
}

// policyRowPayload mirrors one grant row on the wire. Every enum is
// validated before a row crosses into the permission engine.
type policyRowPayload struct {
	Role     string   `json:"role"`
	Resource string   `json:"resource"`
	Actions  []string `json:"actions"`
	Plans    []string `json:"plans"`
}

// ListPolicies fetches the grant rows for a policy query.
func (c *Client) ListPolicies(ctx context.Context, q permission.PolicyQuery) ([]permission.PolicyRow, error) {
	var payload []policyRowPayload
	start := time.Now()
	err := c.post(ctx, "/permissions", q, &payload)
	c.metrics.RecordGrantFetch("core-api", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch grant rows: %w", err)
	}

	rows := make([]permission.PolicyRow, 0, len(payload))
	for _, raw := range payload {
		row := permission.PolicyRow{
			Role:     permission.Role(raw.Role),
			Resource: permission.Resource(raw.Resource),
		}
		for _, a := range raw.Actions {
			row.Actions = append(row.Actions, permission.Action(a))
		}
		for _, p := range raw.Plans {
			row.Plans = append(row.Plans, permission.PlanCode(p))
		}
		if err := row.Validate(); err != nil {
			return nil, fmt.Errorf("grant matrix returned %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// userPayload mirrors the core API user shape.
type userPayload struct {
	IDUser   int64  `json:"idUser"`
	Role     string `json:"role"`
	Provider string `json:"provider"`
	Login    string `json:"login"`
}

// GetAccountUser fetches the user record scoped to an account. ErrNotFound
// means the login has no record for this account; callers treat that as an
// anonymous (developer-role) actor.
func (c *Client) GetAccountUser(ctx context.Context, accountID int64, provider, login string) (*permission.User, error) {
	params := url.Values{}
	params.Set("provider", provider)
	params.Set("login", login)
	path := fmt.Sprintf("/accounts/%d/users?%s", accountID, params.Encode())
	var payload userPayload
	if err := c.get(ctx, path, &payload); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch user %s/%s: %w", provider, login, err)
	}

	user := &permission.User{
		ID:       payload.IDUser,
		Provider: payload.Provider,
		Login:    payload.Login,
	}
	if payload.Role != "" {
		role, err := permission.ParseRole(payload.Role)
		if err != nil {
			return nil, fmt.Errorf("user %d: %w", payload.IDUser, err)
		}
		user.Role = role
	}
	return user, nil
}

// ListAccountRepositoryIDs returns every repository id the account owns.
func (c *Client) ListAccountRepositoryIDs(ctx context.Context, accountID int64) ([]int64, error) {
	var ids []int64
	err := c.get(ctx, fmt.Sprintf("/accounts/%d/repositories/ids", accountID), &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list account repositories: %w", err)
	}
	return ids, nil
}

// ListTeamRepositoryIDs returns the account's repository ids grouped by the
// team role the user holds on the owning team.
func (c *Client) ListTeamRepositoryIDs(ctx context.Context, accountID, userID int64) (map[permission.Role][]int64, error) {
	path := fmt.Sprintf("/accounts/%d/users/%d/team-repositories", accountID, userID)
	return c.getRoleGroupedIDs(ctx, path)
}

// ListUserTeamIDs returns the ids of the teams the user belongs to, grouped
// by role held.
func (c *Client) ListUserTeamIDs(ctx context.Context, accountID, userID int64) (map[permission.Role][]int64, error) {
	path := fmt.Sprintf("/accounts/%d/users/%d/teams", accountID, userID)
	return c.getRoleGroupedIDs(ctx, path)
}

func (c *Client) getRoleGroupedIDs(ctx context.Context, path string) (map[permission.Role][]int64, error) {
	var payload map[string][]int64
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch role-grouped ids: %w", err)
	}

	grouped := make(map[permission.Role][]int64, len(payload))
	for raw, ids := range payload {
		role, err := permission.ParseRole(raw)
		if err != nil {
			return nil, fmt.Errorf("role-grouped ids: %w", err)
		}
		grouped[role] = ids
	}
	return grouped, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamRequest("core-api", "error")
		return err
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstreamRequest("core-api", strconv.Itoa(resp.StatusCode))

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("core API %s %s: %s: %s", method, path, resp.Status, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
