// Package access answers "may this user manage sprints in this project"
// from the grants listed in configuration.
package access

import (
	"context"

	"github.com/akyairhashvil/sprintledger/internal/config"
	"github.com/akyairhashvil/sprintledger/internal/lifecycle"
)

type grantKey struct {
	userID    int64
	projectID int64
}

// Static is an immutable capability table.
type Static struct {
	open   bool
	grants map[grantKey]struct{}
}

var _ lifecycle.Authorizer = (*Static)(nil)

// NewStatic builds the table from cfg. A grant with ProjectID 0 covers every
// project for that user.
func NewStatic(cfg config.AccessConfig) *Static {
	s := &Static{open: cfg.Open, grants: make(map[grantKey]struct{}, len(cfg.Grants))}
	for _, g := range cfg.Grants {
		s.grants[grantKey{g.UserID, g.ProjectID}] = struct{}{}
	}
	return s
}

// HasCapability implements lifecycle.Authorizer. Only the manage-sprints
// capability is known; anything else is denied.
func (s *Static) HasCapability(_ context.Context, userID, projectID int64, capability lifecycle.Capability) (bool, error) {
	if capability != lifecycle.CapManageSprints {
		return false, nil
	}
	if s.open {
		return true, nil
	}
	if _, ok := s.grants[grantKey{userID, projectID}]; ok {
		return true, nil
	}
	_, ok := s.grants[grantKey{userID, 0}]
	return ok, nil
}
