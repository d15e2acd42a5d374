package permission

import (
	"context"
	"fmt"
)

// AccountSource resolves accounts from the core data API. It is consulted
// once per policy, and only when plan resolution must redirect to a root
// account.
type AccountSource interface {
	GetAccount(ctx context.Context, id int64) (*Account, error)
}

// GrantSource fetches grant rows from the grant matrix. The remote core data
// API implements it in SaaS deployments; a local grants file implements it in
// self-hosted mode.
type GrantSource interface {
	ListPolicies(ctx context.Context, q PolicyQuery) ([]PolicyRow, error)
}

// PolicyDeps are the process-wide collaborators a policy resolves through.
type PolicyDeps struct {
	Accounts AccountSource
	Grants   GrantSource

	// SelfHosted substitutes PlanOnPremise for the stored plan.
	SelfHosted bool
}

// PolicyOptions carries the repository and team id pools gathered upstream.
// Pools are stored as given; deduplication across pools happens at
// evaluation time.
type PolicyOptions struct {
	// AccountRepositoryIDs is every repository id the account owns.
	AccountRepositoryIDs []int64

	// ACLReadRepositoryIDs and ACLAdminRepositoryIDs come from the cached
	// provider access list.
	ACLReadRepositoryIDs  []int64
	ACLAdminRepositoryIDs []int64

	// TeamRepositoryIDs groups repository ids by the team role the user
	// holds on the owning team.
	TeamRepositoryIDs map[Role][]int64

	// UserTeamIDsByRole groups the ids of teams the user belongs to by the
	// role held on each.
	UserTeamIDsByRole map[Role][]int64
}

// Policy is the resolved authorization context for a single check: the
// effective plan, the actor's roles, the fetched grant rows, and the id
// pools each role unlocks. It is built per request and is read-only once
// Init has run.
type Policy struct {
	deps PolicyDeps

	account       *Account
	rootAccountID int64
	plan          PlanCode

	userRole  Role
	teamRoles []Role

	rows []PolicyRow

	accountRepositoryIDs  []int64
	aclReadRepositoryIDs  []int64
	aclAdminRepositoryIDs []int64
	teamRepositoryIDs     map[Role][]int64
	userTeamIDsByRole     map[Role][]int64
}

// NewPolicy builds an unresolved policy for an account and an optional user
// record. A nil user defaults to the developer role with no team roles; an
// owner role normalizes to admin. No network calls happen here.
func NewPolicy(deps PolicyDeps, account *Account, user *User, opts PolicyOptions) (*Policy, error) {
	if account == nil {
		return nil, ErrMissingAccount
	}

	role := RoleDeveloper
	if user != nil && user.Role != "" {
		role = user.Role
	}
	if role == RoleOwner {
		role = RoleAdmin
	}

	p := &Policy{
		deps:                  deps,
		account:               account,
		userRole:              role,
		accountRepositoryIDs:  opts.AccountRepositoryIDs,
		aclReadRepositoryIDs:  opts.ACLReadRepositoryIDs,
		aclAdminRepositoryIDs: opts.ACLAdminRepositoryIDs,
		teamRepositoryIDs:     opts.TeamRepositoryIDs,
		userTeamIDsByRole:     opts.UserTeamIDsByRole,
	}

	// The repository-grouped map wins over the raw team-id map when both
	// are present. Canonical role order keeps pool unions deterministic.
	source := opts.TeamRepositoryIDs
	if len(source) == 0 {
		source = opts.UserTeamIDsByRole
	}
	if user != nil {
		for _, r := range TeamRoles() {
			if _, ok := source[r]; ok {
				p.teamRoles = append(p.teamRoles, r)
			}
		}
	}

	return p, nil
}

// InitAccount resolves the effective subscription plan and the root account
// id used for grant-matrix lookups. When the account belongs to a hierarchy,
// the plan comes from the root account. Must complete before Init.
func (p *Policy) InitAccount(ctx context.Context) error {
	p.rootAccountID = p.account.ID
	plan := p.account.Plan

	if p.account.RootAccountID != 0 && p.account.RootAccountID != p.account.ID {
		root, err := p.deps.Accounts.GetAccount(ctx, p.account.RootAccountID)
		if err != nil {
			return fmt.Errorf("failed to resolve root account %d: %w", p.account.RootAccountID, err)
		}
		p.rootAccountID = root.ID
		plan = root.Plan
	}

	if p.deps.SelfHosted {
		plan = PlanOnPremise
	}
	p.plan = plan
	return nil
}

// Init fetches the grant rows for the requested action and resources. Rows
// are requested for the resolved user role, both ACL roles, and every
// defined team role. If the root account, the plan, or the resource list is
// missing, the fetch is skipped and the row set stays empty: no rows means
// no matching role, which means every enforce denies.
func (p *Policy) Init(ctx context.Context, action Action, resources []Resource) error {
	if p.rootAccountID == 0 || p.plan == "" || len(resources) == 0 {
		return nil
	}

	roles := make([]Role, 0, 1+len(ACLRoles())+len(TeamRoles()))
	roles = append(roles, p.userRole)
	roles = append(roles, ACLRoles()...)
	roles = append(roles, TeamRoles()...)

	rows, err := p.deps.Grants.ListPolicies(ctx, PolicyQuery{
		AccountID: p.rootAccountID,
		Plan:      p.plan,
		Roles:     roles,
		Resources: resources,
		Action:    action,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch grant rows: %w", err)
	}
	p.rows = rows
	return nil
}

// UserRole returns the normalized direct role.
func (p *Policy) UserRole() Role { return p.userRole }

// TeamRoles returns the distinct team roles the user holds, in canonical
// order.
func (p *Policy) TeamRoles() []Role { return p.teamRoles }

// Rows returns the fetched grant rows.
func (p *Policy) Rows() []PolicyRow { return p.rows }

// Plan returns the effective plan code.
func (p *Policy) Plan() PlanCode { return p.plan }

// RootAccountID returns the account id grant lookups ran against.
func (p *Policy) RootAccountID() int64 { return p.rootAccountID }

// AccountRepositoryIDs returns every repository id the account owns.
func (p *Policy) AccountRepositoryIDs() []int64 { return p.accountRepositoryIDs }

// TeamRepositoryIDs returns repository ids grouped by held team role.
func (p *Policy) TeamRepositoryIDs() map[Role][]int64 { return p.teamRepositoryIDs }

// ACLRepositoryIDs returns the access-list pool for an ACL role: the admin
// role maps to the write pool, the read role to the read pool.
func (p *Policy) ACLRepositoryIDs(role Role) []int64 {
	switch role {
	case RoleACLAdmin:
		return p.aclAdminRepositoryIDs
	case RoleACLRead:
		return p.aclReadRepositoryIDs
	}
	return nil
}

// TeamIDs returns the ids of teams the user belongs to with the given role.
func (p *Policy) TeamIDs(role Role) []int64 { return p.userTeamIDsByRole[role] }

// AllTeamIDs returns the ids of every team the user belongs to, in canonical
// role order. Duplicates across roles survive; the evaluator deduplicates.
func (p *Policy) AllTeamIDs() []int64 {
	var ids []int64
	for _, r := range TeamRoles() {
		ids = append(ids, p.userTeamIDsByRole[r]...)
	}
	return ids
}
