package cmd

import (
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

// maxSuggestions caps the number of did-you-mean candidates shown.
const maxSuggestions = 3

// suggestCommands fuzzy-matches an unknown command name against the root's
// visible subcommands and their aliases.
func suggestCommands(root *cobra.Command, input string) []string {
	var names []string
	for _, c := range root.Commands() {
		if c.Hidden {
			continue
		}
		names = append(names, c.Name())
		names = append(names, c.Aliases...)
	}

	matches := fuzzy.Find(input, names)
	var out []string
	seen := make(map[string]struct{})
	for _, m := range matches {
		if _, dup := seen[m.Str]; dup {
			continue
		}
		seen[m.Str] = struct{}{}
		out = append(out, m.Str)
		if len(out) >= maxSuggestions {
			break
		}
	}
	return out
}
