package cmd

import (
	"fmt"
	"io"

	"github.com/smy-101/skillcatalog/internal/provider"
	"github.com/smy-101/skillcatalog/internal/state"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(providersCmd)
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "列出已注册的技能仓库及上次处理的版本",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return executeProviders(cmd.OutOrStdout(), cfg.ProvidersFile, cfg.StateFile)
	},
}

func executeProviders(out io.Writer, providersFile, stateFile string) error {
	registry, err := provider.Load(providersFile)
	if err != nil {
		return fmt.Errorf("failed to load providers: %w", err)
	}

	st, err := state.Load(stateFile)
	if err != nil {
		warning(out, "ignoring unreadable state: %v", err)
		st = state.New()
	}

	table := newTable(out, "ID", "Name", "Trust", "Branch", "Pattern", "Revision")
	for _, p := range registry.List() {
		revision := "-"
		if head, ok := st.ProviderCommits[p.ID]; ok {
			revision = shortRevision(head)
		}
		_ = table.Append(p.ID, p.Name, string(p.TrustTier), p.Branch, p.SkillPattern, revision)
	}
	if err := renderTable(table); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nTotal: %d providers\n", registry.Len())
	if !st.LastRun.IsZero() {
		fmt.Fprintf(out, "Last run: %s (version %s, %d skills)\n", st.LastRun.Format("2006-01-02 15:04"), st.Version, st.SkillsCount)
	}
	return nil
}

func shortRevision(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
