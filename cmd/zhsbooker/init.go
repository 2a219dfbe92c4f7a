package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uberswe/zhsbooker/pkg/config"
)

func newInitCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a configuration template to --config",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.NormalizePath(global.configFile)

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}

			if err := config.Save(config.Template(), path); err != nil {
				return err
			}
			log.Info().Str("file", path).Msg("Configuration template written")
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s, fill in your login, bank details and courses.\n", path)
			return nil
		},
	}
}
