package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/smy-101/skillcatalog/internal/aggregate"
	"github.com/smy-101/skillcatalog/internal/catalog"
	"github.com/smy-101/skillcatalog/internal/types"
	"github.com/spf13/cobra"
)

const (
	dateFormat = "2006-01-02"
	emptyMsg   = "No skills match."
	usageHint  = "Use 'skillcatalog aggregate' to build the catalog."
)

var (
	listProvider string
	listCategory string
	listCatalog  string
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listProvider, "provider", "", "只显示指定 provider 的技能")
	listCmd.Flags().StringVar(&listCategory, "category", "", "只显示指定分类的技能")
	listCmd.Flags().StringVar(&listCatalog, "catalog", "", "catalog.json 路径 (默认 <output_dir>/catalog.json)")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "列出目录中的技能",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := listCatalog
		if path == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path = filepath.Join(cfg.OutputDir, aggregate.CatalogFile)
		}
		return executeList(cmd.OutOrStdout(), path, listProvider, listCategory)
	},
}

// executeList loads the catalog at path and prints the skills passing both filters.
func executeList(out io.Writer, path, providerID, category string) error {
	cat, err := loadCatalog(path)
	if err != nil {
		return err
	}

	var skills []types.SkillRecord
	for _, s := range cat.Skills {
		if providerID != "" && s.Provider != providerID {
			continue
		}
		if category != "" && s.Category != category {
			continue
		}
		skills = append(skills, s)
	}

	if len(skills) == 0 {
		fmt.Fprintln(out, emptyMsg)
		if len(cat.Skills) == 0 {
			fmt.Fprintln(out, usageHint)
		}
		return nil
	}

	table := newTable(out, "ID", "Category", "Quality", "Maintenance", "Updated At", "Similar")
	for _, s := range skills {
		updated := "-"
		if s.LastUpdatedAt != nil {
			updated = s.LastUpdatedAt.Format(dateFormat)
		}
		_ = table.Append(s.ID, s.Category, s.QualityScore, string(s.MaintenanceStatus), updated, len(s.SimilarSkills))
	}
	if err := renderTable(table); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nTotal: %d of %d skills (version %s)\n", len(skills), cat.TotalSkills, cat.Version)
	return nil
}

func loadCatalog(path string) (*types.Catalog, error) {
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, fmt.Errorf("no catalog at %s; %s", path, usageHint)
	}
	return cat, nil
}
