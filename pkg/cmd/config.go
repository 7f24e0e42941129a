package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

const redacted = "****"

var secretKeys = map[string]bool{"github_token": true}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "显示当前生效的配置",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		return executeConfigList(cmd.OutOrStdout(), viper.GetViper())
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "显示单个配置项",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeConfigGet(cmd.OutOrStdout(), viper.GetViper(), args[0])
	},
}

func executeConfigList(out io.Writer, v *viper.Viper) error {
	settings := v.AllSettings()
	for key := range secretKeys {
		if s, ok := settings[key].(string); ok && s != "" {
			settings[key] = redacted
		}
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	if used := v.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# config file: %s\n", used)
	}
	_, err = out.Write(data)
	return err
}

func executeConfigGet(out io.Writer, v *viper.Viper, key string) error {
	if !v.IsSet(key) {
		return fmt.Errorf("unknown config key: %s", key)
	}

	value := v.Get(key)
	if secretKeys[key] && v.GetString(key) != "" {
		value = redacted
	}
	_, err := fmt.Fprintln(out, value)
	return err
}
