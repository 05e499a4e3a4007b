// Package docs renders the command reference from the registry.
package docs

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/template"

	"moobot/internal/command"
	"moobot/pkg/cmd"

	"github.com/rs/zerolog/log"
)

// CommandSections renders registered commands as markdown, grouped by
// category. categoryWeights orders categories (lower first); ties and
// unweighted categories sort by name.
func CommandSections(registry *cmd.Registry, prefix string, categoryWeights map[string]int) string {
	commands := registry.GetAll()
	category := func(c cmd.Command) string {
		if meta, ok := command.Meta(c); ok {
			return meta.Category()
		}
		return ""
	}
	sort.SliceStable(commands, func(i, j int) bool {
		ci, cj := category(commands[i]), category(commands[j])
		wi, wj := categoryWeights[ci], categoryWeights[cj]
		if wi != wj {
			return wi < wj
		}
		if ci != cj {
			return ci < cj
		}
		return commands[i].Name() < commands[j].Name()
	})

	var buf strings.Builder
	current := "\x00"
	for _, c := range commands {
		if cat := category(c); cat != current {
			if current != "\x00" {
				buf.WriteString("\n")
			}
			current = cat
			fmt.Fprintf(&buf, "### %s\n\n", current)
		}

		fmt.Fprintf(&buf, "- **`%s%s`**", prefix, c.Name())
		if a, ok := cmd.Root(c).(cmd.Aliased); ok && len(a.Aliases()) > 0 {
			fmt.Fprintf(&buf, " (aliases: %s)", strings.Join(a.Aliases(), ", "))
		}
		fmt.Fprintf(&buf, ": %s\n", c.Description())
	}
	return buf.String()
}

// Render executes tmpl with the command sections as .CommandSections.
func Render(w io.Writer, tmpl string, sections string) error {
	t, err := template.New("readme").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return t.Execute(w, struct{ CommandSections string }{sections})
}

// UpdateReadme regenerates outPath from the template at tmplPath.
func UpdateReadme(registry *cmd.Registry, prefix string, categoryWeights map[string]int, tmplPath, outPath string) error {
	tmpl, err := os.ReadFile(tmplPath)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := Render(f, string(tmpl), CommandSections(registry, prefix, categoryWeights)); err != nil {
		return err
	}
	log.Info().Str("path", outPath).Msg("README updated with current commands")
	return nil
}
