package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/smy-101/skillcatalog/internal/aggregate"
	"github.com/smy-101/skillcatalog/internal/catalog"
	"github.com/smy-101/skillcatalog/internal/classify"
	"github.com/smy-101/skillcatalog/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate [catalog.json]",
	Short: "检查目录文件的一致性",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path := filepath.Join(cfg.OutputDir, aggregate.CatalogFile)
		if len(args) == 1 {
			path = args[0]
		}
		return executeValidate(cmd.OutOrStdout(), path, cfg)
	},
}

func executeValidate(out io.Writer, path string, cfg *config.Config) error {
	cat, err := loadCatalog(path)
	if err != nil {
		return err
	}

	err = catalog.Validate(cat, catalog.Rules{
		Categories: classify.Default().Categories(),
		MaxSimilar: cfg.Similarity.MaxResults,
		Threshold:  cfg.Similarity.Threshold,
	})

	var inconsistent *catalog.ConsistencyError
	if errors.As(err, &inconsistent) {
		for _, v := range inconsistent.Violations {
			failure(out, "%s", v)
		}
		return fmt.Errorf("%s: %d violations", path, len(inconsistent.Violations))
	}
	if err != nil {
		return err
	}

	success(out, "%s is consistent (version %s, %d skills)", path, cat.Version, cat.TotalSkills)
	return nil
}
