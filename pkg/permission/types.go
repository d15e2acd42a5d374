package permission

import "fmt"

// Resource represents a resource type guarded by the policy engine
type Resource string

const (
	ResourceAccounts      Resource = "Accounts"
	ResourceRepositories  Resource = "Repositories"
	ResourceTeams         Resource = "Teams"
	ResourceCustomConfig  Resource = "CustomConfig"
	ResourceActions       Resource = "Actions"
	ResourceJira          Resource = "Jira"
	ResourceSubscription  Resource = "Subscription"
	ResourceCustomEngines Resource = "CustomEngines"
	ResourceReports       Resource = "Reports"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// Role represents a role name as it appears in grant rows. Direct roles are
// assigned per account in the core data API, team roles derive from team
// membership, and ACL roles derive from the VCS provider access list.
type Role string

const (
	RoleDeveloper Role = "developer"
	RoleSecurity  Role = "security"
	RoleAdmin     Role = "admin"

	// RoleOwner is never evaluated directly; it normalizes to RoleAdmin at
	// policy construction so owners inherit every admin grant without a
	// duplicate grant row.
	RoleOwner Role = "owner"

	RoleACLAdmin Role = "acl_admin"
	RoleACLRead  Role = "acl_read"

	RoleTeamDeveloper Role = "team_developer"
	RoleTeamSecurity  Role = "team_security"
	RoleTeamAdmin     Role = "team_admin"
)

// PlanCode represents a subscription plan tier
type PlanCode string

const (
	PlanFree         PlanCode = "FREE"
	PlanStandard     PlanCode = "STANDARD"
	PlanProfessional PlanCode = "PROFESSIONAL"

	// PlanOnPremise is substituted for the stored plan whenever the gateway
	// runs in self-hosted mode.
	PlanOnPremise PlanCode = "ONPREMISE"
)

// DirectRoles returns the account-level roles a user can hold directly.
func DirectRoles() []Role {
	return []Role{RoleDeveloper, RoleSecurity, RoleAdmin}
}

// TeamRoles returns every defined team role, in evaluation order.
func TeamRoles() []Role {
	return []Role{RoleTeamDeveloper, RoleTeamSecurity, RoleTeamAdmin}
}

// ACLRoles returns the roles derived from the provider access list.
// Admin precedes read: the admin pool is unioned first.
func ACLRoles() []Role {
	return []Role{RoleACLAdmin, RoleACLRead}
}

// AllResources returns every defined resource, in declaration order.
func AllResources() []Resource {
	return []Resource{
		ResourceAccounts, ResourceRepositories, ResourceTeams,
		ResourceCustomConfig, ResourceActions, ResourceJira,
		ResourceSubscription, ResourceCustomEngines, ResourceReports,
	}
}

// ParseRole validates a role name received at a trust boundary.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleDeveloper, RoleSecurity, RoleAdmin, RoleOwner,
		RoleACLAdmin, RoleACLRead,
		RoleTeamDeveloper, RoleTeamSecurity, RoleTeamAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// ParseResource validates a resource name received at a trust boundary.
func ParseResource(s string) (Resource, error) {
	switch r := Resource(s); r {
	case ResourceAccounts, ResourceRepositories, ResourceTeams,
		ResourceCustomConfig, ResourceActions, ResourceJira,
		ResourceSubscription, ResourceCustomEngines, ResourceReports:
		return r, nil
	}
	return "", fmt.Errorf("unknown resource %q", s)
}

// ParseAction validates an action name received at a trust boundary.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionRead, ActionWrite:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// ParsePlanCode validates a plan code received at a trust boundary.
func ParsePlanCode(s string) (PlanCode, error) {
	switch p := PlanCode(s); p {
	case PlanFree, PlanStandard, PlanProfessional, PlanOnPremise:
		return p, nil
	}
	return "", fmt.Errorf("unknown plan code %q", s)
}

// PolicyRow is a single grant fetched from the grant matrix: the named role
// may perform the listed actions on the resource under the listed plans.
type PolicyRow struct {
	Role     Role       `json:"role"`
	Resource Resource   `json:"resource"`
	Actions  []Action   `json:"actions"`
	Plans    []PlanCode `json:"plans"`
}

// Validate checks every enum field against its closed set.
func (r PolicyRow) Validate() error {
	if _, err := ParseRole(string(r.Role)); err != nil {
		return fmt.Errorf("invalid grant row: %w", err)
	}
	if _, err := ParseResource(string(r.Resource)); err != nil {
		return fmt.Errorf("invalid grant row: %w", err)
	}
	for _, a := range r.Actions {
		if _, err := ParseAction(string(a)); err != nil {
			return fmt.Errorf("invalid grant row: %w", err)
		}
	}
	for _, p := range r.Plans {
		if _, err := ParsePlanCode(string(p)); err != nil {
			return fmt.Errorf("invalid grant row: %w", err)
		}
	}
	return nil
}

// PolicyQuery describes one grant-matrix fetch: which roles crossed with
// which resources and action, for an account on a plan.
type PolicyQuery struct {
	AccountID int64      `json:"accountId"`
	Plan      PlanCode   `json:"planCode"`
	Roles     []Role     `json:"roles"`
	Resources []Resource `json:"resources"`
	Action    Action     `json:"action"`
}

// Account is the tenant a permission check runs against. When RootAccountID
// differs from ID, plan resolution must go through the root account.
type Account struct {
	ID            int64    `json:"idAccount"`
	RootAccountID int64    `json:"idRootAccount"`
	ParentID      *int64   `json:"idParentAccount,omitempty"`
	Provider      string   `json:"provider"`
	Login         string   `json:"login"`
	Plan          PlanCode `json:"plan"`
}

// User is the authenticated actor's record, scoped to an account. A zero
// Role defaults to developer at policy construction.
type User struct {
	ID       int64  `json:"idUser"`
	Role     Role   `json:"role,omitempty"`
	Provider string `json:"provider"`
	Login    string `json:"login"`
}
