package engine

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnknownName labels matches whose name and path are both empty.
const UnknownName = "Unknown"

var titleCaser = cases.Title(language.Und)

// DisplayName returns the engine-provided name, falling back to a title-cased
// file stem when the engine sent none.
func DisplayName(name, path string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	stem := strings.TrimSuffix(filepath.Base(strings.TrimSpace(path)), filepath.Ext(path))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	stem = strings.Join(strings.Fields(stem), " ")
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return UnknownName
	}
	return titleCaser.String(stem)
}
