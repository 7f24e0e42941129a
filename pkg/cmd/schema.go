package cmd

import (
	"fmt"
	"io"

	"github.com/smy-101/skillcatalog/internal/catalog"
	"github.com/smy-101/skillcatalog/internal/fileutil"
	"github.com/spf13/cobra"
)

var schemaOutput string

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "写入文件 (如 catalog-schema.json)，默认输出到标准输出")
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "输出目录文件的 JSON Schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return executeSchema(cmd.OutOrStdout(), cfg.SchemaURL, schemaOutput)
	},
}

func executeSchema(out io.Writer, id, path string) error {
	data, err := catalog.Schema(id)
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if path == "" {
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	if err := fileutil.WriteAtomic(path, append(data, '\n'), 0644); err != nil {
		return err
	}
	success(out, "写入 %s", path)
	return nil
}
