package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itohio/gokws/pkg/adc"
)

func newPortsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := adc.Ports()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				a.logger.Info("no serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p.Name)
			}
			return nil
		},
	}
}
