package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-dataprep/internal/cache"
	"github.com/rxtech-lab/argo-dataprep/internal/metadata"
	"github.com/rxtech-lab/argo-dataprep/internal/output"
	"github.com/rxtech-lab/argo-dataprep/internal/pipeline"
	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/internal/version"
	"github.com/rxtech-lab/argo-dataprep/pkg/marketdata"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to the dataprep config `FILE`",
	Value:   "dataprep.yaml",
}

var metricsFlag = &cli.StringFlag{
	Name:  "metrics-file",
	Usage: "Write prometheus metrics of the run to `FILE` in text format",
}

func dateFlag(name, usage string, required bool) *cli.TimestampFlag {
	return &cli.TimestampFlag{
		Name:     name,
		Usage:    usage,
		Required: required,
		Config: cli.TimestampConfig{
			Layouts: []string{types.DateLayout},
		},
	}
}

// batchProgress draws one progress bar per cache request.
type batchProgress struct {
	bar *progressbar.ProgressBar
}

func (b *batchProgress) update(p cache.Progress) {
	if p.Batch == 1 || b.bar == nil {
		if b.bar != nil {
			_ = b.bar.Finish()
		}

		b.bar = progressbar.NewOptions(p.Batches,
			progressbar.OptionSetDescription(fmt.Sprintf("%s (%d instruments)", p.Group, p.Instruments)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	_ = b.bar.Add(1)
}

// openPipeline loads the config and builds a pipeline; the returned registry collects its metrics.
func openPipeline(cmd *cli.Command) (*pipeline.Pipeline, *prometheus.Registry, error) {
	config, err := pipeline.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}

	if key := os.Getenv("POLYGON_API_KEY"); key != "" && config.Provider.APIKey == "" {
		config.Provider.APIKey = key
	}

	registry := prometheus.NewRegistry()
	progress := &batchProgress{}

	p, err := pipeline.New(config, pipeline.Options{
		Registerer: registry,
		OnProgress: progress.update,
	})
	if err != nil {
		return nil, nil, err
	}

	return p, registry, nil
}

func writeMetrics(cmd *cli.Command, registry *prometheus.Registry) error {
	path := cmd.String("metrics-file")
	if path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}

	return nil
}

func prepareAction(ctx context.Context, cmd *cli.Command) error {
	p, registry, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	start, end := cmd.Timestamp("start"), cmd.Timestamp("end")

	var out *pipeline.Output

	switch {
	case cmd.String("strategy") != "":
		ref := types.ParseRef(cmd.String("strategy"))
		if ref.Owner == "" {
			ref.Owner = metadata.SystemOwner
		}

		out, err = p.Prepare(ctx, pipeline.StrategyRef{Owner: ref.Owner, Name: ref.Name}, start, end)
	case len(cmd.StringSlice("param")) > 0:
		params := lo.Map(cmd.StringSlice("param"), func(s string, _ int) types.Ref { return types.ParseRef(s) })
		out, err = p.PrepareParams(ctx, pipeline.Request{
			Owner:     cmd.String("owner"),
			Params:    params,
			Scope:     cmd.String("scope"),
			Benchmark: cmd.String("benchmark"),
		}, start, end)
	default:
		return fmt.Errorf("either --strategy or --param is required")
	}

	if err != nil {
		return err
	}

	fmt.Printf("Wrote %d rows x %d params to %s\n", len(out.Table.Rows), len(out.Table.Columns), out.TablePath)
	fmt.Printf("Manifest: %s (run %s)\n", out.ManifestPath, out.Manifest.RunID)

	if total := out.Failures.Total(); total > 0 {
		fmt.Printf("%d indicator cells were unavailable:\n", total)

		for _, id := range out.Failures.Nodes() {
			f, _ := out.Failures.Node(id)
			fmt.Printf("  %s: %d %v\n", id, f.Count, f.Reasons)
		}
	}

	return writeMetrics(cmd, registry)
}

func calendarSyncAction(ctx context.Context, cmd *cli.Command) error {
	p, _, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	open, err := p.SyncCalendar(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Stored trading calendar with %d open days\n", open)

	return nil
}

func instrumentsSyncAction(ctx context.Context, cmd *cli.Command) error {
	p, _, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	n, err := p.SyncInstruments(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Stored %d instruments\n", n)

	return nil
}

func instrumentsListAction(ctx context.Context, cmd *cli.Command) error {
	p, _, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	symbols, err := p.Store().Instruments(ctx, cmd.String("scope"))
	if err != nil {
		return err
	}

	fmt.Println(strings.Join(symbols, "\n"))

	return nil
}

func metadataImportAction(ctx context.Context, cmd *cli.Command) error {
	config, err := pipeline.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	if config.Metadata.Type != "duckdb" {
		return fmt.Errorf("metadata import needs a duckdb metadata store, config uses %s", config.Metadata.Type)
	}

	defs, err := metadata.LoadDefinitions(cmd.String("file"))
	if err != nil {
		return err
	}

	repo, err := metadata.OpenDuckDBRepository(config.Metadata.Path)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.Import(ctx, defs); err != nil {
		return err
	}

	fmt.Printf("Imported %d strategies, %d params and %d indicators\n", len(defs.Strategies), len(defs.Params), len(defs.Indicators))

	return nil
}

func manifestCheckAction(_ context.Context, cmd *cli.Command) error {
	m, err := output.ReadManifest(cmd.String("file"))
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(data))

	return nil
}

func schemaAction(_ context.Context, _ *cli.Command) error {
	schema, err := pipeline.GetConfigSchema()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func providersAction(_ context.Context, _ *cli.Command) error {
	for _, name := range marketdata.GetSupportedProviders() {
		info, err := marketdata.GetProviderInfo(name)
		if err != nil {
			return err
		}

		fmt.Printf("%-10s %-12s calendar=%-10s auth=%-5t %s\n", info.Name, info.DisplayName, info.CalendarMode, info.RequiresAuth, info.Description)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "dataprep",
		Usage:   "Prepare feature tables for backtests",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "prepare",
				Usage: "Resolve, evaluate and write the feature table of a strategy or a param list",
				Flags: []cli.Flag{
					configFlag,
					metricsFlag,
					&cli.StringFlag{
						Name:    "strategy",
						Aliases: []string{"s"},
						Usage:   "Strategy as `OWNER/NAME`",
					},
					&cli.StringSliceFlag{
						Name:    "param",
						Aliases: []string{"p"},
						Usage:   "Param to prepare as `OWNER/NAME` or NAME; repeatable",
					},
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Owner the params are looked up for",
						Value: metadata.SystemOwner,
					},
					&cli.StringFlag{
						Name:  "scope",
						Usage: "Instrument scope for --param: all, a market code or a comma separated symbol list",
						Value: cache.ScopeAll,
					},
					&cli.StringFlag{
						Name:  "benchmark",
						Usage: "Index symbol index_daily tables are read for",
					},
					dateFlag("start", "First day of the window in `YYYY-MM-DD` format", true),
					dateFlag("end", "Last day of the window in `YYYY-MM-DD` format", true),
				},
				Action: prepareAction,
			},
			{
				Name:  "calendar",
				Usage: "Manage the stored trading calendar",
				Commands: []*cli.Command{
					{
						Name:   "sync",
						Usage:  "Generate the configured trading calendar and store it in the cache",
						Flags:  []cli.Flag{configFlag},
						Action: calendarSyncAction,
					},
				},
			},
			{
				Name:  "instruments",
				Usage: "Manage the stored instrument catalog",
				Commands: []*cli.Command{
					{
						Name:   "sync",
						Usage:  "Refresh the instrument catalog from the provider",
						Flags:  []cli.Flag{configFlag},
						Action: instrumentsSyncAction,
					},
					{
						Name:  "list",
						Usage: "List the instruments of a scope",
						Flags: []cli.Flag{
							configFlag,
							&cli.StringFlag{Name: "scope", Value: cache.ScopeAll, Usage: "all, a market code or a comma separated symbol list"},
						},
						Action: instrumentsListAction,
					},
				},
			},
			{
				Name:  "metadata",
				Usage: "Manage strategy, param and indicator definitions",
				Commands: []*cli.Command{
					{
						Name:  "import",
						Usage: "Import a YAML definitions file into the duckdb metadata store",
						Flags: []cli.Flag{
							configFlag,
							&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Definitions `FILE`", Required: true},
						},
						Action: metadataImportAction,
					},
				},
			},
			{
				Name:  "manifest",
				Usage: "Read and check a run manifest",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Manifest `FILE`", Required: true},
				},
				Action: manifestCheckAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the config file",
				Action: schemaAction,
			},
			{
				Name:   "providers",
				Usage:  "List the supported market data providers",
				Action: providersAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
