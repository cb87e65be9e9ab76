package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"katydid-common-contract/pkg/validator/check"
	"katydid-common-contract/pkg/validator/config"
)

// errLintFailed 至少一个文件未通过检查
var errLintFailed = errors.New("lint failed")

func newLintCmd(opts *options) *cobra.Command {
	var fromConfig bool
	cmd := &cobra.Command{
		Use:   "lint [file...]",
		Short: "检查约束文件",
		Long: `加载 YAML 约束文件并构建其中的全部校验，报告语法和配置错误。

示例:
  contractctl lint constraints/user.yaml
  contractctl lint --from-config --config contract.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			files := args
			if fromConfig {
				s, err := opts.settings()
				if err != nil {
					return err
				}
				files = append(files, s.Validator.ConstraintFiles...)
			}
			if len(files) == 0 {
				return errors.New("no constraint files given")
			}
			return lintFiles(cmd, files)
		},
	}
	cmd.Flags().BoolVar(&fromConfig, "from-config", false, "同时检查配置中 validator.constraint_files 列出的文件")
	return cmd
}

func lintFiles(cmd *cobra.Command, files []string) error {
	out := cmd.OutOrStdout()
	registry := check.DefaultRegistry()
	failed := 0
	for _, file := range files {
		fc := config.NewFileConfigurer(registry)
		if err := fc.LoadFile(file); err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s\n  %v\n", file, err)
			continue
		}
		sets, _ := fc.ConstraintSets()
		types := fc.TypeNames()
		sort.Strings(types)
		fmt.Fprintf(out, "ok   %s (%d types, %d constraint sets)\n", file, len(types), len(sets))
		for _, name := range types {
			fmt.Fprintf(out, "     - %s\n", name)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files", errLintFailed, failed, len(files))
	}
	return nil
}
