package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"structsearch/internal/config"
	"structsearch/internal/logging"
	"structsearch/internal/metrics"
	"structsearch/internal/storage"
	api "structsearch/pkg/structsearch"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

type globalFlags struct {
	storeKind   string
	dbPath      string
	logLevel    string
	logFormat   string
	metricsAddr string

	metricsServer *http.Server
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "structsearchctl",
		Short:         "Generate and evaluate candidate crystal structures",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.startMetrics(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return g.stopMetrics(cmd.Context())
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.storeKind, "store", storage.DefaultStoreKind, "store backend: memory|sqlite")
	pf.StringVar(&g.dbPath, "db-path", "structsearch.db", "sqlite database path")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	pf.StringVar(&g.logFormat, "log-format", "text", "log format: text|json")
	pf.StringVar(&g.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while the command runs")

	root.AddCommand(
		newGenerateCmd(g),
		newRunsCmd(g),
		newOrganismsCmd(g),
		newExportCmd(g),
		newContainsCmd(),
		newSampleCmd(),
	)
	return root
}

func (g *globalFlags) client(opts api.Options) (*api.Client, error) {
	if opts.StoreKind == "" {
		opts.StoreKind = g.storeKind
	}
	if opts.DBPath == "" {
		opts.DBPath = g.dbPath
	}
	return api.New(opts)
}

func (g *globalFlags) startMetrics(stderr io.Writer) error {
	if g.metricsAddr == "" {
		return nil
	}
	g.metricsServer = &http.Server{
		Addr:              g.metricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := g.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(stderr, "metrics server: %v\n", err)
		}
	}()
	return nil
}

func (g *globalFlags) stopMetrics(ctx context.Context) error {
	if g.metricsServer == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return g.metricsServer.Shutdown(shutdownCtx)
}

func newGenerateCmd(g *globalFlags) *cobra.Command {
	var (
		configPath string
		runID      string
		exportDir  string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create and evaluate one generation from a YAML run file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.Log.Level = g.logLevel
			}
			if flags.Changed("log-format") {
				cfg.Log.Format = g.logFormat
			}
			logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}

			opts := api.Options{Logger: logger}
			if !flags.Changed("store") {
				opts.StoreKind = cfg.Store.Kind
			}
			if !flags.Changed("db-path") {
				opts.DBPath = cfg.Store.DBPath
			}
			client, err := g.client(opts)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			summary, err := client.Generate(cmd.Context(), api.GenerateRequest{Config: cfg, RunID: runID})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run_id=%s created=%d rejected=%d unevaluable=%d calculations=%d\n",
				summary.RunID, summary.Created, summary.Rejected, summary.Unevaluable, summary.Calculations)
			if summary.BestOrganismID != "" {
				fmt.Fprintf(out, "best=%s energy_per_atom=%.6f\n", summary.BestOrganismID, summary.BestEnergyPerAtom)
			} else {
				fmt.Fprintln(out, "best=none")
			}

			if exportDir != "" {
				exported, err := client.Export(cmd.Context(), api.ExportRequest{RunID: summary.RunID, OutDir: exportDir})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "exported=%s\n", exported.Directory)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML run file")
	cmd.Flags().StringVar(&runID, "run-id", "", "run id (generated when empty)")
	cmd.Flags().StringVar(&exportDir, "export", "", "also write run artifacts under this directory")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newRunsCmd(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client(api.Options{})
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			runs, err := client.Runs(cmd.Context(), api.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "run_id=%s started=%s seed=%d creator=%s engine=%s created=%d unevaluable=%d best=%s energy_per_atom=%.6f\n",
					r.RunID, r.StartedAtUTC, r.Seed, r.Creator, r.Engine, r.Created, r.Unevaluable, r.BestOrganismID, r.BestEnergyPerAtom)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}

func newOrganismsCmd(g *globalFlags) *cobra.Command {
	var (
		runID  string
		latest bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "organisms",
		Short: "List the ranked organisms of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client(api.Options{})
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			items, err := client.Organisms(cmd.Context(), api.OrganismsRequest{RunID: runID, Latest: latest, Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, o := range items {
				energy := fmt.Sprintf("%.6f", o.EnergyPerAtom)
				if o.Unevaluable {
					energy = "inf"
				}
				fmt.Fprintf(out, "rank=%d id=%s composition=%s atoms=%d density=%.4f energy_per_atom=%s\n",
					o.Rank, o.ID, o.Composition, o.NumAtoms, o.Density, energy)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&latest, "latest", false, "use the most recent run")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum organisms to list (0 for all)")
	return cmd
}

func newExportCmd(g *globalFlags) *cobra.Command {
	var (
		runID  string
		latest bool
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a run's records and structures to disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.client(api.Options{})
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			summary, err := client.Export(cmd.Context(), api.ExportRequest{RunID: runID, Latest: latest, OutDir: outDir})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s dir=%s\n", summary.RunID, summary.Directory)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&latest, "latest", false, "use the most recent run")
	cmd.Flags().StringVar(&outDir, "out", "exports", "output directory")
	return cmd
}

func newContainsCmd() *cobra.Command {
	var (
		space   string
		formula string
	)
	cmd := &cobra.Command{
		Use:   "contains",
		Short: "Report whether a formula lies in a composition space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ok, err := api.Contains(strings.Fields(space), formula)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%t\n", ok)
			return nil
		},
	}
	cmd.Flags().StringVar(&space, "space", "", `composition space tokens, e.g. "2 Mg O"`)
	cmd.Flags().StringVar(&formula, "formula", "", "formula to test, e.g. MgO")
	_ = cmd.MarkFlagRequired("space")
	_ = cmd.MarkFlagRequired("formula")
	return cmd
}

func newSampleCmd() *cobra.Command {
	var (
		space string
		req   api.SampleRequest
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Draw random integer compositions from a space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.SpaceTokens = strings.Fields(space)
			comps, err := api.Sample(req)
			if err != nil {
				return err
			}
			for _, c := range comps {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&space, "space", "", `composition space tokens, e.g. "2 Mg O"`)
	cmd.Flags().IntVar(&req.MinAtoms, "min", 1, "minimum atoms")
	cmd.Flags().IntVar(&req.MaxAtoms, "max", 10, "maximum atoms")
	cmd.Flags().IntVar(&req.Count, "count", 1, "number of compositions")
	cmd.Flags().Int64Var(&req.Seed, "seed", 1, "random seed")
	_ = cmd.MarkFlagRequired("space")
	return cmd
}
