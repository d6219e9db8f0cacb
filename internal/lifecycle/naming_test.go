package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextSprintName(t *testing.T) {
	cases := []struct {
		source   string
		existing []string
		want     string
	}{
		{"Sprint 1", nil, "Sprint 2"},
		{"Sprint 9", []string{"Sprint 9"}, "Sprint 10"},
		{"Sprint 1", []string{"Sprint 1", "sprint 2"}, "Sprint 3"},
		{"Release", nil, "Release 2"},
		{"Release", []string{"Release 2"}, "Release 3"},
		{"Q3-7", nil, "Q3-8"},
		{"", nil, "Sprint 1"},
		{"", []string{"Sprint 1", "Sprint 2"}, "Sprint 3"},
		{"", []string{"Alpha", "Sprint 2"}, "Sprint 3"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NextSprintName(tc.source, tc.existing), "source %q existing %v", tc.source, tc.existing)
	}
}
