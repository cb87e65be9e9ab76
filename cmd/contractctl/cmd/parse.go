package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"katydid-common-contract/pkg/validator/check"
	"katydid-common-contract/pkg/validator/config"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <expression>",
		Short: "解析约束表达式",
		Long: `解析标签或约束文件中使用的表达式，并尝试构建每个校验。

示例:
  contractctl parse "notblank; length(3, 20, profiles=create)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := config.ParseExpression(args[0])
			if err != nil {
				return err
			}
			registry := check.DefaultRegistry()
			out := cmd.OutOrStdout()
			for _, spec := range specs {
				c, err := registry.Build(spec.Name, spec.Args)
				if err != nil {
					return err
				}
				s := c.Config()
				fmt.Fprintf(out, "%s(%s)\n  message: %s\n  code: %s\n", spec.Name, spec.Args.Format(), s.Message, s.ErrorCode)
				if len(s.Profiles) > 0 {
					fmt.Fprintf(out, "  profiles: %v\n", s.Profiles)
				}
			}
			return nil
		},
	}
}
