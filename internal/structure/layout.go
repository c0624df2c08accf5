// Package structure ensures and discovers the folder layout the sorter works in:
// an intake folder, a fallback folder and a settings folder holding the audit
// log folder and the rules file.
package structure

import "github.com/Lllllllleong/boxdocumentsorter/internal/rules"

// Layout names the folders and files the sorter relies on.
type Layout struct {
	IntakeFolder   string
	OtherFolder    string
	SettingsFolder string
	LogFolder      string
	RulesFile      string
}

// DefaultLayout returns the stock names.
func DefaultLayout() Layout {
	return Layout{
		IntakeFolder:   "Unsorted",
		OtherFolder:    "Other",
		SettingsFolder: "[settings]",
		LogFolder:      "log",
		RulesFile:      "additional_prompt.txt",
	}
}

// Required lists the top-level folders in creation order.
func (l Layout) Required() []string {
	return []string{l.IntakeFolder, l.OtherFolder, l.SettingsFolder}
}

// IsRequired reports whether name is one of the required top-level folders.
func (l Layout) IsRequired(name string) bool {
	for _, r := range l.Required() {
		if r == name {
			return true
		}
	}
	return false
}

// IsRulesFile reports whether name is accepted as the rules file.
func (l Layout) IsRulesFile(name string) bool {
	return name == l.RulesFile || rules.IsRulesFile(name)
}
