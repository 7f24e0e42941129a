package cmd

import (
	"fmt"
	"os"

	"github.com/smy-101/skillcatalog/internal/config"
	"github.com/smy-101/skillcatalog/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "skillcatalog",
	Short: "skillcatalog CLI",
	Long:  "skillcatalog 聚合多个技能仓库，生成统一的技能目录 (catalog.json / catalog.toon)",

	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(viper.GetViper(), cfgFile); err != nil {
			return err
		}
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			return err
		}
		logger.SetLogFormat(viper.GetString("log_format"))
		return nil
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "配置文件路径 (默认 ./skillcatalog.yaml 或 ~/.skillcatalog/skillcatalog.yaml)")
	flags.String("log-level", "info", "日志级别 (debug, info, warn, error)")
	flags.String("log-format", "fmt", "日志格式 (fmt, json)")

	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log_format", flags.Lookup("log-format"))
}

// loadConfig decodes the effective configuration after PersistentPreRunE ran.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
