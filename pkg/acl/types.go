package acl

import "strconv"

// AllowedRepositories is the per-account repository access a provider grants
// a login: ids readable and ids administered.
type AllowedRepositories struct {
	Read  []int64 `json:"read"`
	Admin []int64 `json:"admin"`
}

// AccountAccess is the provider-granted access for one account.
type AccountAccess struct {
	Login               string              `json:"login"`
	Provider            string              `json:"provider"`
	AllowedRepositories AllowedRepositories `json:"allowedRepositories"`
}

// AllowedAccounts is the synchronized access-list snapshot for one
// (provider, login) pair, keyed by account id. A login maps to at most one
// account per provider. An absent snapshot means synchronization has not
// completed yet, never zero access.
type AllowedAccounts map[string]AccountAccess

// ForAccount returns the repository access for an account id.
func (a AllowedAccounts) ForAccount(accountID int64) AllowedRepositories {
	return a[strconv.FormatInt(accountID, 10)].AllowedRepositories
}

// Identity names one synchronizable (provider, login) pair together with the
// provider token used to refresh it.
type Identity struct {
	Provider string
	Login    string
	Token    string
}
