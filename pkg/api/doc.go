// Package api exposes the authorization engine over HTTP.
//
// The server sits between the session-holding frontend gateway and the
// permission engine. The gateway authenticates the user and forwards the
// identity on every request via the X-Identity-Provider, X-Identity-Login
// and X-Identity-Token headers; this package trusts those headers and never
// inspects sessions or JWTs itself.
//
// # Endpoints
//
// All endpoints are scoped to an account:
//
//	GET  /v2/accounts/{accountId}/permissions    resource summary for an action
//	GET  /v2/accounts/{accountId}/enforce        hard allow/deny gate
//	GET  /v2/accounts/{accountId}/repositories   repository id filter
//	GET  /v2/accounts/{accountId}/teams          team id filter
//	POST /v2/acl/sync                            force an access list refresh
//
// # Error surface
//
// Authorization denials return 403 with the fixed message from the
// permission package. Requests with an unresolvable scope (unknown account,
// missing policy, bad parameters) are 4xx. A user whose first access list
// synchronization has not completed gets 202 with {"isSynchronizing": true}
// so the frontend can retry rather than render an empty account. Upstream
// failures from the core data API or a provider pass through as 500s
// unmasked.
package api
