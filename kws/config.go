package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/itohio/gokws/pkg/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			exists, err := afero.Exists(a.fs, a.configPath)
			if err != nil {
				return err
			}
			if exists && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", a.configPath)
			}
			if err := config.Default().SaveFs(a.fs, a.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", a.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Validate and print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
