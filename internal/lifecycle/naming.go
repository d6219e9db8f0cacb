package lifecycle

import (
	"regexp"
	"strconv"
	"strings"
)

var trailingNumber = regexp.MustCompile(`^(.*?)(\d+)$`)

// NextSprintName derives a follow-on name from source: a trailing number is
// incremented ("Sprint 4" -> "Sprint 5"), otherwise " 2" is appended. The
// result never collides with a name in existing.
func NextSprintName(source string, existing []string) string {
	taken := make(map[string]bool, len(existing))
	for _, name := range existing {
		taken[strings.ToLower(strings.TrimSpace(name))] = true
	}

	source = strings.TrimSpace(source)
	base, n := source+" ", 1
	if source == "" {
		base = "Sprint "
		n = len(existing)
	} else if m := trailingNumber.FindStringSubmatch(source); m != nil {
		if v, err := strconv.Atoi(m[2]); err == nil {
			base, n = m[1], v
		}
	}
	for {
		n++
		candidate := base + strconv.Itoa(n)
		if !taken[strings.ToLower(candidate)] {
			return candidate
		}
	}
}
