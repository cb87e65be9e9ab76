// Package cmd contractctl 命令行：检查约束文件、查看内置校验和生效配置
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"katydid-common-contract/pkg/conf"
	"katydid-common-contract/pkg/logger"
)

type options struct {
	cfgFile string
	verbose bool
}

// NewRootCmd 创建根命令
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "contractctl",
		Short: "契约约束工具",
		Long: `contractctl 用于检查 YAML 约束文件、解析约束表达式以及查看生效的配置。

命令:
  lint     - 检查约束文件
  parse    - 解析约束表达式
  checks   - 列出可用的校验
  config   - 显示生效配置`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				logger.SetLogger(logger.New(logger.Options{Level: "debug"}))
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "配置文件（默认只使用默认值和 KATYDID_CONTRACT_* 环境变量）")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "输出调试日志")

	root.AddCommand(
		newLintCmd(opts),
		newParseCmd(),
		newChecksCmd(),
		newConfigCmd(opts),
	)
	return root
}

// Execute 执行根命令
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return NewRootCmd().Execute()
}

func (o *options) settings() (*conf.Settings, error) {
	s, err := conf.Load(o.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}
