package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akyairhashvil/sprintledger/internal/config"
	"github.com/akyairhashvil/sprintledger/internal/lifecycle"
)

func TestStaticGrants(t *testing.T) {
	s := NewStatic(config.AccessConfig{Grants: []config.Grant{
		{UserID: 1, ProjectID: 10},
		{UserID: 2, ProjectID: 0},
	}})
	ctx := context.Background()

	cases := []struct {
		user, project int64
		want          bool
	}{
		{1, 10, true},
		{1, 11, false},
		{2, 10, true},
		{2, 99, true},
		{3, 10, false},
	}
	for _, tc := range cases {
		ok, err := s.HasCapability(ctx, tc.user, tc.project, lifecycle.CapManageSprints)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ok, "user %d project %d", tc.user, tc.project)
	}
}

func TestStaticOpen(t *testing.T) {
	s := NewStatic(config.AccessConfig{Open: true})
	ok, err := s.HasCapability(context.Background(), 5, 5, lifecycle.CapManageSprints)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasCapability(context.Background(), 5, 5, lifecycle.Capability("delete_project"))
	require.NoError(t, err)
	assert.False(t, ok)
}
