package initiative

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Trailing sequence markers on spawned monster names: "Goblin 2",
// "goblin_2", "Orc #3", "Wolf-1".
var trailingSequence = regexp.MustCompile(`[\s_\-]*#?\d+$`)

var titleCaser = cases.Title(language.English)

// GroupName strips the trailing sequence number from a monster name so
// spawned copies share one initiative group. Comparison is
// case-insensitive.
func GroupName(name string) string {
	base := trailingSequence.ReplaceAllString(strings.TrimSpace(name), "")
	if base == "" {
		return strings.ToLower(strings.TrimSpace(name))
	}
	return strings.ToLower(base)
}

// GroupLabel renders a group key for display, e.g. "dire wolf" ->
// "Dire Wolf".
func GroupLabel(key string) string {
	return titleCaser.String(key)
}
