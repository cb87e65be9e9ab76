package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"katydid-common-contract/pkg/validator/check"
)

func newChecksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checks",
		Short: "列出可用的校验",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range check.DefaultRegistry().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
