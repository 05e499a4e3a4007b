// Command build-readme regenerates README.md from README.md.tmpl and the
// registered commands.
package main

import (
	"flag"

	"moobot/internal/command/music"
	"moobot/internal/discord"
	"moobot/internal/docs"
	"moobot/internal/logging"
	"moobot/pkg/cmd"

	"github.com/rs/zerolog/log"
)

var categoryWeights = map[string]int{
	"🐮 Cowboard": 1,
	"🎵 Music":    2,
}

func main() {
	prefix := flag.String("prefix", ".", "command prefix shown in the reference")
	tmpl := flag.String("template", "README.md.tmpl", "template path")
	out := flag.String("out", "README.md", "output path")
	flag.Parse()

	logging.Setup("info", "")

	registry := cmd.NewRegistry()
	// collaborators are only needed at run time
	if err := discord.RegisterCommands(registry, discord.CommandDeps{Music: &music.Deps{}}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register commands")
	}

	if err := docs.UpdateReadme(registry, *prefix, categoryWeights, *tmpl, *out); err != nil {
		log.Fatal().Err(err).Msg("Failed to update README")
	}
}
