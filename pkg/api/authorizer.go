package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gr-thach/cli-repo-sub003/pkg/acl"
	"github.com/gr-thach/cli-repo-sub003/pkg/coreapi"
	"github.com/gr-thach/cli-repo-sub003/pkg/permission"
)

// Identity headers set by the session layer in front of the gateway.
const (
	HeaderProvider = "X-Identity-Provider"
	HeaderLogin    = "X-Identity-Login"
	HeaderToken    = "X-Identity-Token"
)

// ErrMissingIdentity reports a request without the identity headers.
var ErrMissingIdentity = errors.New("identity headers are missing")

// CoreClient is the subset of the core data API the authorizer consumes.
// *coreapi.Client implements it.
type CoreClient interface {
	GetAccount(ctx context.Context, id int64) (*permission.Account, error)
	GetAccountUser(ctx context.Context, accountID int64, provider, login string) (*permission.User, error)
	ListAccountRepositoryIDs(ctx context.Context, accountID int64) ([]int64, error)
	ListTeamRepositoryIDs(ctx context.Context, accountID, userID int64) (map[permission.Role][]int64, error)
	ListUserTeamIDs(ctx context.Context, accountID, userID int64) (map[permission.Role][]int64, error)
}

// ACLResolver resolves access-list snapshots. *acl.Synchronizer implements it.
type ACLResolver interface {
	Resolve(ctx context.Context, provider, login, token string) (acl.AllowedAccounts, error)
	Sync(ctx context.Context, provider, login, token string) (acl.AllowedAccounts, error)
}

// Authorizer assembles a resolved policy for one request: account and user
// from the core data API, id pools from the access list and team membership,
// grants from the configured grant source.
type Authorizer struct {
	core       CoreClient
	grants     permission.GrantSource
	acl        ACLResolver
	selfHosted bool
}

// NewAuthorizer wires the policy collaborators together. In self-hosted mode
// the grant source is the local grants file instead of the core API.
func NewAuthorizer(core CoreClient, grants permission.GrantSource, resolver ACLResolver, selfHosted bool) *Authorizer {
	return &Authorizer{
		core:       core,
		grants:     grants,
		acl:        resolver,
		selfHosted: selfHosted,
	}
}

// IdentityFromRequest extracts the VCS identity forwarded by the session
// layer. Provider and login are required; the token is optional and only
// needed to trigger a live access-list sync.
func IdentityFromRequest(r *http.Request) (acl.Identity, error) {
	ident := acl.Identity{
		Provider: r.Header.Get(HeaderProvider),
		Login:    r.Header.Get(HeaderLogin),
		Token:    r.Header.Get(HeaderToken),
	}
	if ident.Provider == "" || ident.Login == "" {
		return acl.Identity{}, ErrMissingIdentity
	}
	return ident, nil
}

// Resolve builds the policy for an identity acting on an account. The
// returned policy has its plan resolved and is ready for evaluator
// construction.
func (a *Authorizer) Resolve(ctx context.Context, ident acl.Identity, accountID int64) (*permission.Policy, error) {
	account, err := a.core.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, coreapi.ErrNotFound) {
			return nil, permission.ErrMissingAccount
		}
		return nil, fmt.Errorf("failed to resolve account %d: %w", accountID, err)
	}

	user, err := a.core.GetAccountUser(ctx, accountID, ident.Provider, ident.Login)
	if err != nil && !errors.Is(err, coreapi.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve account user: %w", err)
	}

	snapshot, err := a.acl.Resolve(ctx, ident.Provider, ident.Login, ident.Token)
	if err != nil {
		return nil, err
	}
	access := snapshot.ForAccount(accountID)

	accountRepositoryIDs, err := a.core.ListAccountRepositoryIDs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list account repositories: %w", err)
	}

	opts := permission.PolicyOptions{
		AccountRepositoryIDs:  accountRepositoryIDs,
		ACLReadRepositoryIDs:  access.Read,
		ACLAdminRepositoryIDs: access.Admin,
	}

	if user != nil {
		opts.TeamRepositoryIDs, err = a.core.ListTeamRepositoryIDs(ctx, accountID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list team repositories: %w", err)
		}
		opts.UserTeamIDsByRole, err = a.core.ListUserTeamIDs(ctx, accountID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list user teams: %w", err)
		}
	}

	deps := permission.PolicyDeps{
		Accounts:   a.core,
		Grants:     a.grants,
		SelfHosted: a.selfHosted,
	}

	policy, err := permission.NewPolicy(deps, account, user, opts)
	if err != nil {
		return nil, err
	}
	if err := policy.InitAccount(ctx); err != nil {
		return nil, err
	}
	return policy, nil
}
