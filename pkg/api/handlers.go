package api

import (
	"errors"
	"net/http"

	"github.com/gr-thach/cli-repo-sub003/pkg/acl"
	"github.com/gr-thach/cli-repo-sub003/pkg/coreapi"
	"github.com/gr-thach/cli-repo-sub003/pkg/httputil"
	"github.com/gr-thach/cli-repo-sub003/pkg/permission"
)

// permissionSummaryResponse lists the resources the actor's direct role can
// touch for the requested action.
type permissionSummaryResponse struct {
	Resources []permission.Resource `json:"resources"`
}

type repositoriesResponse struct {
	RepositoryIDs []int64 `json:"repositoryIds"`
}

type teamsResponse struct {
	TeamIDs []int64 `json:"teamIds"`
}

type syncResponse struct {
	Synchronized bool `json:"synchronized"`
}

// requestScope parses the pieces every authorization endpoint needs.
func (s *Server) requestScope(w http.ResponseWriter, r *http.Request) (acl.Identity, int64, permission.Action, bool) {
	ident, err := IdentityFromRequest(r)
	if err != nil {
		httputil.WriteUnauthorized(w, err.Error())
		return acl.Identity{}, 0, "", false
	}

	accountID, err := httputil.ParsePathInt64(r, "accountId")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return acl.Identity{}, 0, "", false
	}

	action, err := permission.ParseAction(httputil.ParseQueryString(r, "action", string(permission.ActionRead)))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return acl.Identity{}, 0, "", false
	}

	return ident, accountID, action, true
}

// getPermissionSummary reports which resources the actor may act on.
func (s *Server) getPermissionSummary(w http.ResponseWriter, r *http.Request) {
	ident, accountID, action, ok := s.requestScope(w, r)
	if !ok {
		return
	}

	policy, err := s.authorizer.Resolve(r.Context(), ident, accountID)
	if err != nil {
		s.writeDomainError(w, err, permission.ResourceAccounts, action)
		return
	}

	perm, err := permission.NewPermission(r.Context(), policy, action, permission.AllResources()...)
	if err != nil {
		s.writeDomainError(w, err, permission.ResourceAccounts, action)
		return
	}

	resources := perm.AllowedResources()
	if resources == nil {
		resources = []permission.Resource{}
	}
	httputil.WriteSuccess(w, permissionSummaryResponse{Resources: resources})
}

// enforce is the hard gate: 204 when the direct role grants the action on
// the resource, 403 otherwise.
func (s *Server) enforce(w http.ResponseWriter, r *http.Request) {
	ident, accountID, action, ok := s.requestScope(w, r)
	if !ok {
		return
	}

	resource, err := permission.ParseResource(httputil.ParseQueryString(r, "resource", ""))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	policy, err := s.authorizer.Resolve(r.Context(), ident, accountID)
	if err != nil {
		s.writeDomainError(w, err, resource, action)
		return
	}

	perm, err := permission.NewPermission(r.Context(), policy, action, resource)
	if err != nil {
		s.writeDomainError(w, err, resource, action)
		return
	}

	if err := perm.Enforce(); err != nil {
		s.writeDomainError(w, err, resource, action)
		return
	}

	s.recordDecision(resource, action, true, "")
	httputil.WriteNoContent(w)
}

// filterRepositories returns the repository ids the actor may act on,
// optionally filtered to a requested id list.
func (s *Server) filterRepositories(w http.ResponseWriter, r *http.Request) {
	ident, accountID, action, ok := s.requestScope(w, r)
	if !ok {
		return
	}

	requested, err := httputil.ParseQueryInt64List(r, "repositoryIds")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	policy, err := s.authorizer.Resolve(r.Context(), ident, accountID)
	if err != nil {
		s.writeDomainError(w, err, permission.ResourceRepositories, action)
		return
	}

	perm, err := permission.NewPermission(r.Context(), policy, action, permission.ResourceRepositories)
	if err != nil {
		s.writeDomainError(w, err, permission.ResourceRepositories, action)
		return
	}

	allowed, err := perm.RepositoriesEnforce(requested...)
	if err != nil {
		s.writeDomainError(w, err, permission.ResourceRepositories, action)
		return
	}

	s.recordDecision(permission.ResourceRepositories, action, true, "")
	if allowed == nil {
		allowed = []int64{}
	}
	httputil.WriteSuccess(w, repositoriesResponse{RepositoryIDs: allowed})
}

// filterTeams returns the team ids the actor may act on.
func (s *Server) filterTeams(w http.ResponseWriter, r *http.Request) {
	ident, accountID, action, ok := s.requestScope(w, r)
	if !ok {
		return
	}

	requested, err := httputil.ParseQueryInt64List(r, "teamIds")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	policy, err := s.authorizer.Resolve(r.Context(), ident, accountID)
	if err != nil {
		s.writeDomainError(w, err, permission.ResourceTeams, action)
		return
	}

	perm, err := permission.NewTeamPermission(r.Context(), policy, action, permission.ResourceTeams)
	if err != nil {
		s.writeDomainError(w, err, permission.ResourceTeams, action)
		return
	}

	allowed, err := perm.TeamsEnforce(requested...)
	if err != nil {
		s.writeDomainError(w, err, permission.ResourceTeams, action)
		return
	}

	s.recordDecision(permission.ResourceTeams, action, true, "")
	if allowed == nil {
		allowed = []int64{}
	}
	httputil.WriteSuccess(w, teamsResponse{TeamIDs: allowed})
}

// syncACL forces a live access-list synchronization for the caller.
func (s *Server) syncACL(w http.ResponseWriter, r *http.Request) {
	ident, err := IdentityFromRequest(r)
	if err != nil {
		httputil.WriteUnauthorized(w, err.Error())
		return
	}
	if ident.Token == "" {
		httputil.WriteBadRequest(w, "a provider token is required to synchronize")
		return
	}

	if _, err := s.authorizer.acl.Sync(r.Context(), ident.Provider, ident.Login, ident.Token); err != nil {
		s.logger.WithError(err).WithIdentity(ident.Provider, ident.Login).Warn("access list sync failed")
		httputil.WriteError(w, http.StatusBadGateway, err)
		return
	}

	httputil.WriteSuccess(w, syncResponse{Synchronized: true})
}

// writeDomainError maps domain errors onto the HTTP surface. Upstream
// failures pass through unmasked as 500s.
func (s *Server) writeDomainError(w http.ResponseWriter, err error, resource permission.Resource, action permission.Action) {
	var denied *permission.DeniedError
	switch {
	case errors.As(err, &denied):
		s.recordDecision(resource, action, false, string(denied.Kind))
		httputil.WriteForbidden(w, denied.Error())
	case errors.Is(err, permission.ErrForbidden):
		s.recordDecision(resource, action, false, "")
		httputil.WriteForbidden(w, permission.ErrForbidden.Error())
	case errors.Is(err, permission.ErrMissingAccount), errors.Is(err, permission.ErrMissingPolicy):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, acl.ErrSynchronizing):
		httputil.WriteJSON(w, http.StatusAccepted, map[string]bool{"isSynchronizing": true})
	case errors.Is(err, coreapi.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}

func (s *Server) recordDecision(resource permission.Resource, action permission.Action, allowed bool, reason string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordDecision(string(resource), string(action), allowed, reason)
}
