package permission

import (
	"context"
)

// matchingRole is the subset of the actor's candidate roles that actually
// appear in the fetched grant rows. It is computed once per evaluator and
// drives every subsequent decision: a role only counts if the grant matrix
// lists it for the requested plan, resource, and action.
type matchingRole struct {
	user []Role
	team []Role
	acl  []Role
}

func (m matchingRole) userMatched() bool { return len(m.user) > 0 }

func (m matchingRole) hasTeamRole(role Role) bool {
	for _, r := range m.team {
		if r == role {
			return true
		}
	}
	return false
}

// idSource supplies the id pools an evaluator unions. The two
// implementations cover repository-scoped and team-scoped resources; the
// matching-role computation is shared.
type idSource interface {
	// directPool is the pool unlocked by a direct-role match.
	directPool(p *Policy) []int64
	// rolePools are the pools unlocked by matched team and ACL roles,
	// in union order.
	rolePools(p *Policy, m matchingRole) [][]int64
	// enforceable reports whether any role pool matched at all.
	enforceable(m matchingRole) bool
}

// Permission evaluates one resolved policy against one requested action and
// resource set. Construct it through NewPermission or NewTeamPermission.
type Permission struct {
	policy    *Policy
	action    Action
	resources []Resource
	matching  matchingRole
	source    idSource
}

// NewPermission builds a repository-scoped evaluator. It resolves the grant
// rows via policy.Init and computes the matching roles. A nil policy is a
// caller bug and fails with ErrMissingPolicy. Pair the result with
// RepositoriesEnforce.
func NewPermission(ctx context.Context, policy *Policy, action Action, resources ...Resource) (*Permission, error) {
	return newPermission(ctx, policy, action, resources, repositorySource{})
}

// NewTeamPermission builds a team-scoped evaluator: allowed ids are team
// ids, and the only elevated non-direct role is team admin. Pair the result
// with TeamsEnforce.
func NewTeamPermission(ctx context.Context, policy *Policy, action Action, resources ...Resource) (*Permission, error) {
	return newPermission(ctx, policy, action, resources, teamSource{})
}

func newPermission(ctx context.Context, policy *Policy, action Action, resources []Resource, source idSource) (*Permission, error) {
	if policy == nil {
		return nil, ErrMissingPolicy
	}
	if err := policy.Init(ctx, action, resources); err != nil {
		return nil, err
	}
	return &Permission{
		policy:    policy,
		action:    action,
		resources: resources,
		matching:  computeMatching(policy),
		source:    source,
	}, nil
}

func computeMatching(p *Policy) matchingRole {
	granted := make(map[Role]struct{}, len(p.Rows()))
	for _, row := range p.Rows() {
		granted[row.Role] = struct{}{}
	}

	var m matchingRole
	if _, ok := granted[p.UserRole()]; ok {
		m.user = []Role{p.UserRole()}
	}
	for _, r := range p.TeamRoles() {
		if _, ok := granted[r]; ok {
			m.team = append(m.team, r)
		}
	}
	for _, r := range ACLRoles() {
		if _, ok := granted[r]; ok {
			m.acl = append(m.acl, r)
		}
	}
	return m
}

// Enforce is the hard gate for account-level resources: it denies unless the
// direct user role matched. Team and ACL roles never satisfy it.
func (p *Permission) Enforce() error {
	if !p.matching.userMatched() {
		return denied(DenialNoMatchingRole)
	}
	return nil
}

// AllowedIDs computes the ids the actor may act upon. With no arguments it
// returns the full allowed set in union order; with requested ids it returns
// exactly the requested ids present in the allowed set, in requested order.
// The order asymmetry is contractual: callers depend on both behaviors.
func (p *Permission) AllowedIDs(requested ...int64) []int64 {
	union := make([]int64, 0)
	seen := make(map[int64]struct{})
	appendPool := func(ids []int64) {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			union = append(union, id)
		}
	}

	if p.matching.userMatched() {
		appendPool(p.source.directPool(p.policy))
	}
	for _, pool := range p.source.rolePools(p.policy, p.matching) {
		appendPool(pool)
	}

	if len(requested) == 0 {
		return union
	}

	filtered := make([]int64, 0, len(requested))
	for _, id := range requested {
		if _, ok := seen[id]; ok {
			filtered = append(filtered, id)
		}
	}
	return filtered
}

// RepositoriesEnforce is the soft gate for repository-scoped resources: it
// denies when no role pool matched at all, or when requested ids were given
// and none of them is allowed. Otherwise it returns the allowed subset (the
// full allowed set when no ids were requested).
//
// The ids come from the strategy the constructor chose: only call this on
// evaluators built with NewPermission.
func (p *Permission) RepositoriesEnforce(repositoryIDs ...int64) ([]int64, error) {
	return p.enforceAllowed(repositoryIDs)
}

// TeamsEnforce is the team-scoped counterpart of RepositoriesEnforce: it
// passes only for a direct-role match or a team-admin match. A plain team
// membership role matching on its own still denies. Only call this on
// evaluators built with NewTeamPermission.
func (p *Permission) TeamsEnforce(teamIDs ...int64) ([]int64, error) {
	return p.enforceAllowed(teamIDs)
}

func (p *Permission) enforceAllowed(requested []int64) ([]int64, error) {
	if !p.source.enforceable(p.matching) {
		return nil, denied(DenialNoMatchingRole)
	}
	allowed := p.AllowedIDs(requested...)
	if len(requested) > 0 && len(allowed) == 0 {
		return nil, denied(DenialNoAllowedIDs)
	}
	return allowed, nil
}

// AllowedResources returns the distinct resources named by grant rows whose
// role is a direct user role, in row order. ACL and team rows never appear:
// this summarizes what the actor's direct role can touch across resources,
// independent of the single requested resource.
func (p *Permission) AllowedResources() []Resource {
	direct := make(map[Role]struct{})
	for _, r := range DirectRoles() {
		direct[r] = struct{}{}
	}

	var resources []Resource
	seen := make(map[Resource]struct{})
	for _, row := range p.policy.Rows() {
		if _, ok := direct[row.Role]; !ok {
			continue
		}
		if _, ok := seen[row.Resource]; ok {
			continue
		}
		seen[row.Resource] = struct{}{}
		resources = append(resources, row.Resource)
	}
	return resources
}

// repositorySource unions the account-wide pool, the per-team-role pools,
// and the ACL pools.
type repositorySource struct{}

func (repositorySource) directPool(p *Policy) []int64 {
	return p.AccountRepositoryIDs()
}

func (repositorySource) rolePools(p *Policy, m matchingRole) [][]int64 {
	pools := make([][]int64, 0, len(m.team)+len(m.acl))
	for _, role := range m.team {
		pools = append(pools, p.TeamRepositoryIDs()[role])
	}
	for _, role := range m.acl {
		pools = append(pools, p.ACLRepositoryIDs(role))
	}
	return pools
}

func (repositorySource) enforceable(m matchingRole) bool {
	return m.userMatched() || len(m.team) > 0 || len(m.acl) > 0
}

// teamSource unions every team the user belongs to (direct-role match) with
// the teams held as team admin. ACL roles play no part in team scope.
type teamSource struct{}

func (teamSource) directPool(p *Policy) []int64 {
	return p.AllTeamIDs()
}

func (teamSource) rolePools(p *Policy, m matchingRole) [][]int64 {
	if m.hasTeamRole(RoleTeamAdmin) {
		return [][]int64{p.TeamIDs(RoleTeamAdmin)}
	}
	return nil
}

func (teamSource) enforceable(m matchingRole) bool {
	return m.userMatched() || m.hasTeamRole(RoleTeamAdmin)
}
