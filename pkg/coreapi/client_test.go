package coreapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gr-thach/cli-repo-sub003/pkg/observability"
	"github.com/gr-thach/cli-repo-sub003/pkg/permission"
)

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(Config{BaseURL: server.URL, Token: "svc-token"})
	return client, server
}

func TestGetAccount(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/42", r.URL.Path)
		require.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{
			"idAccount": 42,
			"idRootAccount": 1,
			"provider": "github",
			"login": "octo-org",
			"subscription": {"plan": {"code": "PROFESSIONAL"}}
		}`)
	}))
	defer server.Close()

	account, err := client.GetAccount(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), account.ID)
	assert.Equal(t, int64(1), account.RootAccountID)
	assert.Equal(t, permission.PlanProfessional, account.Plan)
}

func TestGetAccount_UnknownPlanRejected(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"idAccount": 42, "subscription": {"plan": {"code": "PLATINUM"}}}`)
	}))
	defer server.Close()

	_, err := client.GetAccount(context.Background(), 42)
	assert.Error(t, err)
}

func TestGetAccount_NotFound(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := client.GetAccount(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListPolicies(t *testing.T) {
	var gotQuery permission.PolicyQuery
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/permissions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotQuery))
		fmt.Fprint(w, `[
			{"role": "admin", "resource": "Repositories", "actions": ["read", "write"], "plans": ["STANDARD"]},
			{"role": "acl_read", "resource": "Repositories", "actions": ["read"], "plans": ["STANDARD"]}
		]`)
	}))
	defer server.Close()

	query := permission.PolicyQuery{
		AccountID: 1,
		Plan:      permission.PlanStandard,
		Roles:     []permission.Role{permission.RoleAdmin},
		Resources: []permission.Resource{permission.ResourceRepositories},
		Action:    permission.ActionRead,
	}
	rows, err := client.ListPolicies(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, permission.RoleAdmin, rows[0].Role)
	assert.Equal(t, []permission.Action{permission.ActionRead, permission.ActionWrite}, rows[0].Actions)
	assert.Equal(t, int64(1), gotQuery.AccountID)
	assert.Equal(t, permission.ActionRead, gotQuery.Action)
}

func TestListPolicies_InvalidRowRejected(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"role": "root", "resource": "Repositories", "actions": ["read"]}]`)
	}))
	defer server.Close()

	_, err := client.ListPolicies(context.Background(), permission.PolicyQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestGetAccountUser(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/42/users", r.URL.Path)
		require.Equal(t, "github", r.URL.Query().Get("provider"))
		fmt.Fprint(w, `{"idUser": 7, "role": "owner", "provider": "github", "login": "octocat"}`)
	}))
	defer server.Close()

	user, err := client.GetAccountUser(context.Background(), 42, "github", "octocat")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, permission.RoleOwner, user.Role)
}

func TestGetAccountUser_NotFound(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := client.GetAccountUser(context.Background(), 42, "github", "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListTeamRepositoryIDs(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/42/users/7/team-repositories", r.URL.Path)
		fmt.Fprint(w, `{"team_admin": [9, 10], "team_developer": [1]}`)
	}))
	defer server.Close()

	grouped, err := client.ListTeamRepositoryIDs(context.Background(), 42, 7)
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 10}, grouped[permission.RoleTeamAdmin])
	assert.Equal(t, []int64{1}, grouped[permission.RoleTeamDeveloper])
}

func TestListTeamRepositoryIDs_UnknownRoleRejected(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"team_lead": [9]}`)
	}))
	defer server.Close()

	_, err := client.ListTeamRepositoryIDs(context.Background(), 42, 7)
	assert.Error(t, err)
}

func TestListAccountRepositoryIDs(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/42/repositories/ids", r.URL.Path)
		fmt.Fprint(w, `[1, 2, 3]`)
	}))
	defer server.Close()

	ids, err := client.ListAccountRepositoryIDs(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestUpstreamErrorCarriesStatus(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := client.ListAccountRepositoryIDs(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestGetAccountUser_EscapesQueryValues(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "github", r.URL.Query().Get("provider"))
		require.Equal(t, "oc to&cat#7", r.URL.Query().Get("login"))
		fmt.Fprint(w, `{"idUser": 7, "role": "developer", "provider": "github", "login": "oc to&cat#7"}`)
	}))
	defer server.Close()

	user, err := client.GetAccountUser(context.Background(), 42, "github", "oc to&cat#7")
	require.NoError(t, err)
	assert.Equal(t, "oc to&cat#7", user.Login)
}

func TestClient_CountsUpstreamRequestsAndGrantFetches(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()
	client := NewClient(Config{BaseURL: server.URL, Metrics: metrics})

	_, err := client.ListPolicies(context.Background(), permission.PolicyQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UpstreamRequestsTotal.WithLabelValues("core-api", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.GrantFetchDuration, "permgw_grant_fetch_duration_seconds"))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.GrantFetchErrors.WithLabelValues("core-api")))
}

func TestClient_CountsGrantFetchErrors(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()
	client := NewClient(Config{BaseURL: server.URL, Metrics: metrics})

	_, err := client.ListPolicies(context.Background(), permission.PolicyQuery{})
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GrantFetchErrors.WithLabelValues("core-api")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UpstreamRequestsTotal.WithLabelValues("core-api", "500")))
}
