package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resolvedPolicy builds a policy whose grant fetch returns the given rows.
func resolvedPolicy(t *testing.T, user *User, opts PolicyOptions, rows []PolicyRow) *Policy {
	t.Helper()
	deps := PolicyDeps{Accounts: &stubAccounts{}, Grants: &stubGrants{rows: rows}}
	account := &Account{ID: 1, RootAccountID: 1, Plan: PlanStandard}
	policy, err := NewPolicy(deps, account, user, opts)
	require.NoError(t, err)
	require.NoError(t, policy.InitAccount(context.Background()))
	return policy
}

func grantRow(role Role, resource Resource) PolicyRow {
	return PolicyRow{
		Role:     role,
		Resource: resource,
		Actions:  []Action{ActionRead, ActionWrite},
		Plans:    []PlanCode{PlanStandard},
	}
}

func TestNewPermission_RequiresPolicy(t *testing.T) {
	_, err := NewPermission(context.Background(), nil, ActionRead, ResourceRepositories)
	require.ErrorIs(t, err, ErrMissingPolicy)

	_, err = NewTeamPermission(context.Background(), nil, ActionRead, ResourceTeams)
	require.ErrorIs(t, err, ErrMissingPolicy)
}

func TestEnforce_FailsClosedOnEmptyGrants(t *testing.T) {
	user := &User{ID: 7, Role: RoleAdmin}
	opts := PolicyOptions{
		AccountRepositoryIDs:  []int64{1, 2, 3},
		ACLAdminRepositoryIDs: []int64{1},
		TeamRepositoryIDs:     map[Role][]int64{RoleTeamAdmin: {9}},
	}
	policy := resolvedPolicy(t, user, opts, nil)

	perm, err := NewPermission(context.Background(), policy, ActionRead, ResourceRepositories)
	require.NoError(t, err)

	err = perm.Enforce()
	require.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, perm.AllowedIDs(), "no grant rows means no allowed ids, pools notwithstanding")
}

func TestEnforce_PassesOnlyOnDirectRoleMatch(t *testing.T) {
	user := &User{ID: 7, Role: RoleAdmin}
	opts := PolicyOptions{
		ACLAdminRepositoryIDs: []int64{1},
		TeamRepositoryIDs:     map[Role][]int64{RoleTeamAdmin: {9}},
	}

	// ACL and team rows alone never satisfy the hard gate.
	rows := []PolicyRow{
		grantRow(RoleACLAdmin, ResourceRepositories),
		grantRow(RoleTeamAdmin, ResourceRepositories),
	}
	policy := resolvedPolicy(t, user, opts, rows)
	perm, err := NewPermission(context.Background(), policy, ActionRead, ResourceRepositories)
	require.NoError(t, err)
	require.ErrorIs(t, perm.Enforce(), ErrForbidden)

	rows = append(rows, grantRow(RoleAdmin, ResourceRepositories))
	policy = resolvedPolicy(t, user, opts, rows)
	perm, err = NewPermission(context.Background(), policy, ActionRead, ResourceRepositories)
	require.NoError(t, err)
	assert.NoError(t, perm.Enforce())
}

func TestAllowedIDs_UnionsAllMatchedPools(t *testing.T) {
	user := &User{ID: 7, Role: RoleAdmin}
	opts := PolicyOptions{
		AccountRepositoryIDs:  []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		ACLAdminRepositoryIDs: []int64{1},
		TeamRepositoryIDs:     map[Role][]int64{RoleTeamAdmin: {9, 10}},
	}
	rows := []PolicyRow{
		grantRow(RoleAdmin, ResourceRepositories),
		grantRow(RoleTeamAdmin, ResourceRepositories),
		grantRow(RoleACLAdmin, ResourceRepositories),
	}
	policy := resolvedPolicy(t, user, opts, rows)

	perm, err := NewPermission(context.Background(), policy, ActionWrite, ResourceRepositories)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, perm.AllowedIDs())
}

func TestAllowedIDs_RequestedOrderPreserved(t *testing.T) {
	user := &User{ID: 7, Role: RoleAdmin}
	opts := PolicyOptions{AccountRepositoryIDs: []int64{6, 5, 4, 3, 2, 1}}
	rows := []PolicyRow{grantRow(RoleAdmin, ResourceRepositories)}
	policy := resolvedPolicy(t, user, opts, rows)

	perm, err := NewPermission(context.Background(), policy, ActionRead, ResourceRepositories)
	require.NoError(t, err)

	// Output follows the requested order; id 7 is dropped.
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, perm.AllowedIDs(1, 2, 3, 4, 5, 6, 7))

	// Without requested ids the union's natural order applies.
	assert.Equal(t, []int64{6, 5, 4, 3, 2, 1}, perm.AllowedIDs())
}

func TestAllowedIDs_PoolOnlyCountsWhenItsRoleMatched(t *testing.T) {
	user := &User{ID: 7, Role: RoleDeveloper}
	opts := PolicyOptions{
		AccountRepositoryIDs: []int64{1, 2, 3},
		ACLReadRepositoryIDs: []int64{40, 41},
		TeamRepositoryIDs:    map[Role][]int64{RoleTeamDeveloper: {50}},
	}

	// Only the ACL read role is granted: the account and team pools stay out.
	rows := []PolicyRow{grantRow(RoleACLRead, ResourceRepositories)}
	policy := resolvedPolicy(t, user, opts, rows)
	perm, err := NewPermission(context.Background(), policy, ActionRead, ResourceRepositories)
	require.NoError(t, err)
	assert.Equal(t, []int64{40, 41}, perm.AllowedIDs())
}

func TestRepositoriesEnforce_DeniesWhenNoPoolMatched(t *testing.T) {
	user := &User{ID: 7, Role: RoleDeveloper}
	opts := PolicyOptions{AccountRepositoryIDs: []int64{1, 2, 3}}

	// Grants exist, but for none of the actor's candidate roles.
	rows := []PolicyRow{grantRow(RoleSecurity, ResourceRepositories)}
	policy := resolvedPolicy(t, user, opts, rows)
	perm, err := NewPermission(context.Background(), policy, ActionRead, ResourceRepositories)
	require.NoError(t, err)

	_, err = perm.RepositoriesEnforce(1)
	require.Error(t, err)
	assert.Equal(t, "You have insufficient permissions.", err.Error())
	require.ErrorIs(t, err, ErrForbidden)

	var deniedErr *DeniedError
	require.ErrorAs(t, err, &deniedErr)
	assert.Equal(t, DenialNoMatchingRole, deniedErr.Kind)
}

func TestRepositoriesEnforce_DeniesOnEmptyIntersection(t *testing.T) {
	user := &User{ID: 7, Role: RoleAdmin}
	opts := PolicyOptions{AccountRepositoryIDs: []int64{1, 2, 3}}
	rows := []PolicyRow{grantRow(RoleAdmin, ResourceRepositories)}
	policy := resolvedPolicy(t, user, opts, rows)

	perm, err := NewPermission(context.Background(), policy, ActionRead, ResourceRepositories)
	require.NoError(t, err)

	_, err = perm.RepositoriesEnforce(99, 100)
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "You have insufficient permissions.", err.Error())

	var deniedErr *DeniedError
	require.ErrorAs(t, err, &deniedErr)
	assert.Equal(t, DenialNoAllowedIDs, deniedErr.Kind)
}

func TestRepositoriesEnforce_FiltersRequestedIDs(t *testing.T) {
	user := &User{ID: 7, Role: RoleAdmin}
	opts := PolicyOptions{AccountRepositoryIDs: []int64{1, 2, 3}}
	rows := []PolicyRow{grantRow(RoleAdmin, ResourceRepositories)}
	policy := resolvedPolicy(t, user, opts, rows)

	perm, err := NewPermission(context.Background(), policy, ActionRead, ResourceRepositories)
	require.NoError(t, err)

	allowed, err := perm.RepositoriesEnforce(3, 1, 99)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, allowed)

	// No requested ids returns the caller's entire allowed set.
	allowed, err = perm.RepositoriesEnforce()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, allowed)
}

func TestRepositoriesEnforce_ACLRoleAloneSuffices(t *testing.T) {
	user := &User{ID: 7, Role: RoleDeveloper}
	opts := PolicyOptions{
		AccountRepositoryIDs: []int64{1, 2, 3},
		ACLReadRepositoryIDs: []int64{2},
	}
	rows := []PolicyRow{grantRow(RoleACLRead, ResourceRepositories)}
	policy := resolvedPolicy(t, user, opts, rows)

	perm, err := NewPermission(context.Background(), policy, ActionRead, ResourceRepositories)
	require.NoError(t, err)

	allowed, err := perm.RepositoriesEnforce(2, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, allowed)
}

func TestTeamsEnforce_RoleRestricted(t *testing.T) {
	opts := PolicyOptions{
		UserTeamIDsByRole: map[Role][]int64{
			RoleTeamDeveloper: {10, 11},
			RoleTeamAdmin:     {12},
		},
	}

	cases := []struct {
		name    string
		rows    []PolicyRow
		allowed []int64
		denied  bool
	}{
		{
			name:   "plain team developer match alone denies",
			rows:   []PolicyRow{grantRow(RoleTeamDeveloper, ResourceTeams)},
			denied: true,
		},
		{
			name:    "team admin match passes with admin teams only",
			rows:    []PolicyRow{grantRow(RoleTeamAdmin, ResourceTeams)},
			allowed: []int64{12},
		},
		{
			name:    "direct role match passes with every team",
			rows:    []PolicyRow{grantRow(RoleDeveloper, ResourceTeams)},
			allowed: []int64{10, 11, 12},
		},
		{
			name:    "direct and team admin match unions without duplicates",
			rows:    []PolicyRow{grantRow(RoleDeveloper, ResourceTeams), grantRow(RoleTeamAdmin, ResourceTeams)},
			allowed: []int64{10, 11, 12},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			user := &User{ID: 7, Role: RoleDeveloper}
			policy := resolvedPolicy(t, user, opts, tc.rows)
			perm, err := NewTeamPermission(context.Background(), policy, ActionRead, ResourceTeams)
			require.NoError(t, err)

			allowed, err := perm.TeamsEnforce()
			if tc.denied {
				require.ErrorIs(t, err, ErrForbidden)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, allowed)
		})
	}
}

func TestTeamsEnforce_RequestedIDsFiltered(t *testing.T) {
	user := &User{ID: 7, Role: RoleDeveloper}
	opts := PolicyOptions{
		UserTeamIDsByRole: map[Role][]int64{RoleTeamAdmin: {12, 13}},
	}
	rows := []PolicyRow{grantRow(RoleTeamAdmin, ResourceTeams)}
	policy := resolvedPolicy(t, user, opts, rows)

	perm, err := NewTeamPermission(context.Background(), policy, ActionWrite, ResourceTeams)
	require.NoError(t, err)

	allowed, err := perm.TeamsEnforce(13, 99)
	require.NoError(t, err)
	assert.Equal(t, []int64{13}, allowed)

	_, err = perm.TeamsEnforce(99)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAllowedResources_FiltersToDirectRoleRows(t *testing.T) {
	user := &User{ID: 7, Role: RoleAdmin}
	opts := PolicyOptions{
		ACLAdminRepositoryIDs: []int64{1},
		TeamRepositoryIDs:     map[Role][]int64{RoleTeamAdmin: {9}},
	}
	rows := []PolicyRow{
		grantRow(RoleACLAdmin, ResourceRepositories),
		grantRow(RoleTeamAdmin, ResourceRepositories),
		grantRow(RoleAdmin, ResourceRepositories),
		grantRow(RoleAdmin, ResourceJira),
		grantRow(RoleAdmin, ResourceSubscription),
		grantRow(RoleDeveloper, ResourceJira),
	}
	policy := resolvedPolicy(t, user, opts, rows)

	perm, err := NewPermission(context.Background(), policy, ActionRead, ResourceRepositories)
	require.NoError(t, err)

	assert.Equal(t,
		[]Resource{ResourceRepositories, ResourceJira, ResourceSubscription},
		perm.AllowedResources())
}

func TestNewPermission_PropagatesFetchError(t *testing.T) {
	deps := PolicyDeps{
		Accounts: &stubAccounts{},
		Grants:   &stubGrants{err: errors.New("upstream down")},
	}
	account := &Account{ID: 1, RootAccountID: 1, Plan: PlanStandard}
	policy, err := NewPolicy(deps, account, nil, PolicyOptions{})
	require.NoError(t, err)
	require.NoError(t, policy.InitAccount(context.Background()))

	_, err = NewPermission(context.Background(), policy, ActionRead, ResourceRepositories)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrForbidden, "upstream failures are not denials")
}
