package cmd

import (
	"fmt"
	"io"

	"github.com/smy-101/skillcatalog/internal/initializer"
	"github.com/spf13/cobra"
)

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "覆盖已存在的文件")
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "在目录中生成默认的 skillcatalog.yaml 和 providers.yaml",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		return executeInit(cmd.OutOrStdout(), dir, initForce)
	},
}

func executeInit(out io.Writer, dir string, force bool) error {
	paths, err := initializer.New(dir, force).Scaffold()
	if err != nil {
		return fmt.Errorf("初始化失败: %w", err)
	}

	for _, p := range paths {
		success(out, "写入 %s", p)
	}
	fmt.Fprintln(out, "\n编辑 providers.yaml 后运行:")
	fmt.Fprintln(out, "  skillcatalog aggregate --mode full")
	return nil
}
