package permission

import "errors"

// ErrForbidden is the base authorization denial. Every denial raised by the
// evaluators unwraps to it, so callers gate on errors.Is(err, ErrForbidden).
var ErrForbidden = errors.New("You have insufficient permissions.")

// ErrMissingAccount signals that a policy was requested without an account
// context. This is a caller bug (bad request), not a denial.
var ErrMissingAccount = errors.New("account is required to resolve a policy")

// ErrMissingPolicy signals that an evaluator was requested without a resolved
// policy, meaning the caller never resolved a mandatory account context.
var ErrMissingPolicy = errors.New("policy is required to evaluate permissions")

// DenialKind distinguishes the two denial paths for observability. Both
// surface the same message and unwrap to ErrForbidden.
type DenialKind string

const (
	// DenialNoMatchingRole means none of the actor's candidate roles appear
	// in the fetched grant rows.
	DenialNoMatchingRole DenialKind = "no_matching_role"
	// DenialNoAllowedIDs means at least one role matched but the requested
	// id set does not intersect the allowed set.
	DenialNoAllowedIDs DenialKind = "no_allowed_ids"
)

// DeniedError is an authorization denial with its cause attached.
type DeniedError struct {
	Kind DenialKind
}

func (e *DeniedError) Error() string { return ErrForbidden.Error() }

func (e *DeniedError) Unwrap() error { return ErrForbidden }

func denied(kind DenialKind) error {
	return &DeniedError{Kind: kind}
}
