// Package permission implements the policy and permission evaluation engine
// of the gateway.
//
// # Overview
//
// Every authorization check merges three independent sources into one
// decision: the actor's direct account role, the provider access list cached
// from the VCS (ACL), and team-based role assignments. The engine resolves a
// Policy for an account and user, fetches the grant matrix for the requested
// action and resources, computes which candidate roles actually match, and
// answers either with a hard gate (Enforce) or with the allowed subset of a
// requested id set (RepositoriesEnforce, TeamsEnforce, AllowedIDs).
//
// # Control flow
//
// Callers resolve the access list first (see pkg/acl), then build and
// resolve a Policy, then construct an evaluator:
//
//	policy, err := permission.NewPolicy(deps, account, user, permission.PolicyOptions{
//		AccountRepositoryIDs:  accountRepoIDs,
//		ACLReadRepositoryIDs:  snapshot.Read,
//		ACLAdminRepositoryIDs: snapshot.Admin,
//		TeamRepositoryIDs:     teamRepoIDs,
//		UserTeamIDsByRole:     teamIDs,
//	})
//	if err != nil {
//		return err
//	}
//	if err := policy.InitAccount(ctx); err != nil {
//		return err
//	}
//	perm, err := permission.NewPermission(ctx, policy, permission.ActionRead,
//		permission.ResourceRepositories)
//	if err != nil {
//		return err
//	}
//	allowed, err := perm.RepositoriesEnforce(requestedIDs...)
//
// InitAccount must complete before the evaluator is constructed: it resolves
// the effective plan, redirecting through the root account when the account
// belongs to a hierarchy, and substituting the ONPREMISE sentinel in
// self-hosted deployments.
//
// # Matching roles
//
// A grant is role-scoped, and a role only counts if the fetched grant matrix
// lists it for the requested plan, resource, and action. A direct-role admin
// gains nothing if the matrix never mentions admin for this check. The
// matching-role computation is shared between the repository-scoped and
// team-scoped evaluators; only the id pools differ, supplied by a small
// strategy interface.
//
// # Fail-closed
//
// Any path where the plan, the root account, or the resource list cannot be
// determined leaves the grant rows empty, which leaves the matching roles
// empty, which denies. There is no fail-open branch. A genuine network error
// during the fetch itself is never masked and fails the whole request.
//
// # Related packages
//
//   - pkg/acl: provider access-list snapshots and cache
//   - pkg/coreapi: remote grant-matrix and account lookups
//   - pkg/grants: local grant matrix for self-hosted deployments
package permission
