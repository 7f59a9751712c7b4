package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/worshipplan/server/internal/importer"
)

func newTemplateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write a CSV import template with example rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return importer.WriteTemplate(cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := importer.WriteTemplate(f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the template to a file instead of stdout")
	return cmd
}
