package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionBumps(t *testing.T) {
	v := InitialVersion
	assert.Equal(t, "1.0", v.String())

	v = v.BumpMinor().BumpMinor()
	assert.Equal(t, "1.2", v.String())

	v = v.BumpMajor()
	assert.Equal(t, Version{Major: 2, Minor: 0}, v)
	assert.Equal(t, "2.1", v.BumpMinor().String())
}

func TestPolicyVersionLabel(t *testing.T) {
	p := &Policy{MajorVersion: 2, MinorVersion: 3}
	assert.Equal(t, "2.3", p.VersionLabel())
}

func TestChangeDiffNormalize(t *testing.T) {
	d := ChangeDiff{Modified: []string{"x"}}.Normalize()
	assert.NotNil(t, d.Added)
	assert.NotNil(t, d.Removed)
	assert.False(t, d.Empty())
	assert.True(t, ChangeDiff{}.Empty())
}

func TestPolicyVersionDiff(t *testing.T) {
	var v PolicyVersion
	d, err := v.Diff()
	require.NoError(t, err)
	assert.Nil(t, d)

	require.NoError(t, v.SetDiff(ChangeDiff{Added: []string{"Added section \"Scope\""}}))
	assert.JSONEq(t, `{"added":["Added section \"Scope\""],"removed":[],"modified":[]}`, string(v.ChangesDiff))

	d, err = v.Diff()
	require.NoError(t, err)
	assert.Equal(t, []string{"Added section \"Scope\""}, d.Added)
	assert.Empty(t, d.Modified)
}

func TestStatusAndRoleValidity(t *testing.T) {
	assert.True(t, StatusPendingApproval.Valid())
	assert.True(t, StatusRejected.Valid())
	assert.False(t, WorkflowStatus("archived").Valid())

	assert.True(t, RoleApprover.Valid())
	assert.False(t, UserRole("owner").Valid())
}
