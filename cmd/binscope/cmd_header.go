package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ochairo/binscope/internal/domain-adapters/gateways"
)

func newHeaderCommand(_ *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "header <binary>",
		Short: "Print the Mach-O header of a binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := gateways.NewMachOHeaderReader().ReadHeader(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, info)
			}
			fmt.Fprintf(out, "🔍 %s %s\n", bold("Mach-O header of"), args[0])
			renderHeader(out, info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the header as JSON")
	return cmd
}
