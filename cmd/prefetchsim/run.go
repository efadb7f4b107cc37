package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sarchlab/llcprefetch/internal/config"
	"github.com/sarchlab/llcprefetch/internal/simcache"
	"github.com/sarchlab/llcprefetch/prefetch"
)

type runOptions struct {
	traceFile   string
	configFile  string
	core        string
	numSets     int
	numWays     int
	pqSize      int
	mshrSize    int
	victimPolicy string
	metricsAddr string
	logLevel    string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a trace file through the selected prefetcher core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, v, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.traceFile, "trace", "", "path to a trace file (required)")
	flags.StringVar(&opts.configFile, "config", "", "optional YAML config file (spec.md §9 knobs)")
	flags.StringVar(&opts.core, "core", "mlsp", "prefetcher core to drive: mlsp or acp")
	flags.IntVar(&opts.numSets, "sets", 2048, "LLC set count")
	flags.IntVar(&opts.numWays, "ways", 16, "LLC way associativity")
	flags.IntVar(&opts.pqSize, "pq-size", 32, "prefetch queue budget")
	flags.IntVar(&opts.mshrSize, "mshr-size", 64, "MSHR budget")
	flags.StringVar(&opts.victimPolicy, "victim-policy", "lru", "LLC replacement policy: lru or perceptron")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "zerolog level: trace, debug, info, warn, error")

	_ = cmd.MarkFlagRequired("trace")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	return cmd
}

func runTrace(cmd *cobra.Command, v *viper.Viper, opts *runOptions) error {
	level, err := zerolog.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Str("run_id", uuid.NewString()).Logger()

	cfg, err := loadConfig(v, opts.configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	switch opts.core {
	case "acp":
		cfg.Core = config.CoreACP
	default:
		cfg.Core = config.CoreMLSP
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	reg := prometheus.NewRegistry()
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: opts.metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		logger.Info().Str("addr", opts.metricsAddr).Msg("serving /metrics")
	}

	core, err := prefetch.New(cfg, reg, logger)
	if err != nil {
		return fmt.Errorf("constructing prefetcher: %w", err)
	}

	var victimFinder simcache.VictimFinder
	switch opts.victimPolicy {
	case "perceptron":
		victimFinder = simcache.NewPerceptronVictimFinder()
	default:
		victimFinder = simcache.NewLRUVictimFinder()
	}
	blockSize := int(cfg.Geometry.BlockSize())
	harness := simcache.NewHarness(opts.numSets, opts.numWays, blockSize, opts.pqSize, opts.mshrSize, victimFinder, logger)

	f, err := os.Open(opts.traceFile)
	if err != nil {
		return fmt.Errorf("opening trace: %w", err)
	}
	defer f.Close()

	var accesses, hits, prefetched uint64
	malformed, err := readTrace(f, func(rec traceRecord) {
		accesses++
		hit := harness.Access(rec.Addr)
		if hit {
			hits++
		}
		issued := core.OnAccess(harness, rec.PC, rec.Addr, hit, rec.Type)
		prefetched += uint64(len(issued))
	})
	if err != nil {
		return fmt.Errorf("reading trace: %w", err)
	}
	if malformed > 0 {
		logger.Warn().Int("count", malformed).Msg("skipped malformed trace lines")
	}

	printSummary(cmd, accesses, hits, prefetched, len(harness.IssuedPrefetches()))
	return nil
}

func printSummary(cmd *cobra.Command, accesses, hits, prefetched uint64, issued int) {
	hitRate := 0.0
	if accesses > 0 {
		hitRate = float64(hits) / float64(accesses) * 100
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.AppendHeader(table.Row{"metric", "value"})
	tw.AppendRow(table.Row{"accesses", accesses})
	tw.AppendRow(table.Row{"demand hits", hits})
	tw.AppendRow(table.Row{"demand hit rate", fmt.Sprintf("%.2f%%", hitRate)})
	tw.AppendRow(table.Row{"candidates from core", prefetched})
	tw.AppendRow(table.Row{"prefetches issued to cache", issued})
	tw.Render()
}
