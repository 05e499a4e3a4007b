// Command cli inspects the settings store offline.
//
//	cli guilds               list the guilds with stored data
//	cli cowboard <guildID>   print the cowboard config
//	cli history <guildID>    print the recent command history
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"moobot/internal/config"
	"moobot/internal/storage"

	"github.com/rs/zerolog/log"
)

func main() {
	st, err := config.LoadStorage()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	store, err := storage.Open(st.StorageDriver, st.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	if err := run(os.Stdout, store, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(w io.Writer, store storage.Store, args []string) error {
	const usage = "usage: cli guilds | cli cowboard|history <guildID>"
	if len(args) == 0 {
		return errors.New(usage)
	}
	if (args[0] == "guilds") != (len(args) == 1) || len(args) > 2 {
		return errors.New(usage)
	}

	var v any
	var err error
	switch args[0] {
	case "guilds":
		v, err = store.Guilds()
	case "cowboard":
		var ok bool
		v, ok, err = store.LookupCowboard(args[1])
		if err == nil && !ok {
			return fmt.Errorf("no cowboard record for guild %s", args[1])
		}
	case "history":
		v, err = store.CommandHistory(args[1])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
