package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole("acl_admin")
	require.NoError(t, err)
	assert.Equal(t, RoleACLAdmin, role)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}

func TestParseResource(t *testing.T) {
	resource, err := ParseResource("CustomEngines")
	require.NoError(t, err)
	assert.Equal(t, ResourceCustomEngines, resource)

	_, err = ParseResource("Widgets")
	assert.Error(t, err)
}

func TestPolicyRowValidate(t *testing.T) {
	row := PolicyRow{
		Role:     RoleAdmin,
		Resource: ResourceRepositories,
		Actions:  []Action{ActionRead, ActionWrite},
		Plans:    []PlanCode{PlanFree, PlanOnPremise},
	}
	assert.NoError(t, row.Validate())

	bad := row
	bad.Role = "root"
	assert.Error(t, bad.Validate())

	bad = row
	bad.Actions = []Action{"execute"}
	assert.Error(t, bad.Validate())

	bad = row
	bad.Plans = []PlanCode{"PLATINUM"}
	assert.Error(t, bad.Validate())
}
