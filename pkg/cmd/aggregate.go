package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/hashicorp/go-multierror"
	"github.com/smy-101/skillcatalog/internal/aggregate"
	"github.com/smy-101/skillcatalog/internal/catalog"
	"github.com/smy-101/skillcatalog/internal/config"
	"github.com/smy-101/skillcatalog/internal/fetch"
	"github.com/smy-101/skillcatalog/internal/logger"
	"github.com/smy-101/skillcatalog/internal/provider"
	"github.com/smy-101/skillcatalog/internal/similar"
	"github.com/smy-101/skillcatalog/internal/toon"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var aggregateDryRun bool

func init() {
	rootCmd.AddCommand(aggregateCmd)

	flags := aggregateCmd.Flags()
	flags.String("mode", config.ModeIncremental, "运行模式 (incremental, full)")
	flags.String("output-dir", ".", "输出目录")
	flags.Int("workers", 4, "并发处理的 provider 数量")
	flags.BoolVar(&aggregateDryRun, "dry-run", false, "只显示 catalog.json 的变更，不写入任何文件")

	_ = viper.BindPFlag("mode", flags.Lookup("mode"))
	_ = viper.BindPFlag("output_dir", flags.Lookup("output-dir"))
	_ = viper.BindPFlag("workers", flags.Lookup("workers"))
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "抓取所有 provider 并生成技能目录",
	Long: `抓取所有已注册的技能仓库，解析 SKILL.md，生成技能目录。

incremental 模式下，head 未变化的 provider 直接复用上一次的目录数据；
full 模式下，所有 provider 都会重新抓取。

示例:
  skillcatalog aggregate
  skillcatalog aggregate --mode full --output-dir ./dist
  skillcatalog aggregate --dry-run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return executeAggregate(ctx, cfg, aggregateDryRun, cmd.OutOrStdout())
	},
}

func executeAggregate(ctx context.Context, cfg *config.Config, dryRun bool, out io.Writer) error {
	logger.G(ctx).WithField("config", fmt.Sprintf("%+v", cfg.Redacted())).Debug("effective configuration")

	registry, err := provider.Load(cfg.ProvidersFile)
	if err != nil {
		return fmt.Errorf("failed to load providers: %w", err)
	}
	overlay, err := catalog.LoadOverlay(cfg.OverlayFile)
	if err != nil {
		return err
	}

	budget := fetch.NewBudget(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.Reserve, cfg.RateLimit.MaxWait)
	client := fetch.NewClient(ctx, fetch.Options{
		Token:      cfg.GitHubToken,
		Timeout:    cfg.RequestTimeout,
		APIBaseURL: cfg.APIBaseURL,
		Budget:     budget,
	})
	heads := fetch.NewHeadResolver(cfg.HeadSource, client, cfg.GitHubToken)

	agg := aggregate.New(registry, client, heads, nil, aggregateOptions(cfg, overlay, dryRun))

	fmt.Fprintf(out, "正在聚合 %d 个 provider (%s)...\n", registry.Len(), cfg.Mode)
	stats, err := agg.Run(ctx)
	if stats != nil {
		printAggregateSummary(out, stats, client.Requests(), dryRun)
	}
	if err != nil {
		return fmt.Errorf("聚合失败: %w", err)
	}
	return nil
}

func aggregateOptions(cfg *config.Config, overlay catalog.Overlay, dryRun bool) aggregate.Options {
	return aggregate.Options{
		Full:             cfg.Mode == config.ModeFull,
		OutputDir:        cfg.OutputDir,
		StateFile:        cfg.StateFile,
		ChangelogFile:    cfg.ChangelogFile,
		Workers:          cfg.Workers,
		FetchLastUpdated: cfg.FetchLastUpdated,
		FetchRepoInfo:    cfg.FetchRepoInfo,
		SchemaURL:        cfg.SchemaURL,
		Similarity: similar.Options{
			CategoryWeight: cfg.Similarity.CategoryWeight,
			TagWeight:      cfg.Similarity.TagWeight,
			KeywordWeight:  cfg.Similarity.KeywordWeight,
			Threshold:      cfg.Similarity.Threshold,
			MaxResults:     cfg.Similarity.MaxResults,
		},
		Toon:    toonChain(cfg.Toon),
		Overlay: overlay,
		DryRun:  dryRun,
	}
}

// toonChain builds the encoder chain: the built-in encoder first, then the
// external command.
func toonChain(c config.ToonConfig) toon.Chain {
	if !c.Enabled {
		return nil
	}
	var chain toon.Chain
	if c.Native {
		chain = append(chain, toon.NativeEncoder{})
	}
	if len(c.Command) > 0 {
		chain = append(chain, toon.CommandEncoder{Command: c.Command})
	}
	return chain
}

func printAggregateSummary(out io.Writer, stats *aggregate.Stats, requests int64, dryRun bool) {
	if stats.Diff != "" {
		fmt.Fprintln(out, stats.Diff)
	}

	heading(out, "\n聚合结果")
	table := newTable(out, "Providers", "Processed", "Skipped", "Failed", "Skills", "Requests")
	_ = table.Append(stats.Providers, stats.Processed, stats.Skipped, stats.Failed, stats.Skills, requests)
	if err := renderTable(table); err != nil {
		failure(out, "%v", err)
	}

	if stats.ParseFailures > 0 || stats.FetchFailures > 0 {
		warning(out, "跳过了 %d 个无效的 SKILL.md，%d 个抓取失败的文件", stats.ParseFailures, stats.FetchFailures)
	}
	if merr, ok := stats.Errors.(*multierror.Error); ok {
		for _, e := range merr.Errors {
			warning(out, "%v", e)
		}
	}

	switch {
	case stats.Version == "":
		return
	case stats.Unchanged:
		success(out, "目录内容无变化，保持版本 %s", stats.Version)
	case dryRun:
		success(out, "dry-run: 版本 %s 未写入", stats.Version)
	default:
		success(out, "生成版本 %s，写入 %d 个文件", stats.Version, len(stats.Written))
	}
	if stats.ToonEncoder != "" {
		fmt.Fprintf(out, "TOON encoder: %s\n", stats.ToonEncoder)
	}
}
