// Package config implements the config subcommand, used to inspect and
// export the effective service configuration.
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carplateapi/carplate-go/internal/conf"
)

// Command creates the config command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and export configuration",
	}

	cmd.AddCommand(pathsCommand(), exportCommand(settings))
	return cmd
}

func pathsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the config file search paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := conf.GetDefaultConfigPaths()
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func exportCommand(settings *conf.Settings) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the effective configuration to a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.SaveYAMLConfig(output, settings); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "config.yaml", "Destination file")
	return cmd
}
