package main

import (
	"github.com/spf13/cobra"
	"github.com/worshipplan/server/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "worshipplan",
		Short:         "Import service plans from planning-tool exports",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.AddCommand(newImportCmd(cfg))
	cmd.AddCommand(newTemplateCmd())
	return cmd
}
