package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-returnless/pkg/config"
	"github.com/ajitpratap0/tap-returnless/pkg/connector/core"
	"github.com/ajitpratap0/tap-returnless/pkg/connector/registry"
	"github.com/ajitpratap0/tap-returnless/pkg/connector/sources/returnless"
	"github.com/ajitpratap0/tap-returnless/pkg/errors"
	"github.com/ajitpratap0/tap-returnless/pkg/logger"
	"github.com/ajitpratap0/tap-returnless/pkg/metrics"
	"github.com/ajitpratap0/tap-returnless/pkg/observability"
	"github.com/ajitpratap0/tap-returnless/pkg/protocol"
)

var version = returnless.Version

// options holds command line flags. Set flags override the config file.
type options struct {
	configFile  string
	output      string
	logLevel    string
	streams     []string
	metricsAddr string
	trace       bool
	validate    bool
	timeout     time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "tap-returnless",
		Short: "Extract the Returnless API as Singer messages",
		Long: `tap-returnless pages through every Returnless REST endpoint and writes
SCHEMA, RECORD and STATE messages to stdout or a file.

Example:
  tap-returnless sync --config config.yaml --streams tags,forms`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to a YAML or JSON config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringSliceVar(&opts.streams, "streams", nil, "Comma separated streams to sync")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tap-returnless v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "streams",
		Short: "List the streams the tap extracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := registry.CreateSource(returnless.ConnectorName)
			if err != nil {
				return err
			}
			return printStreams(cmd.OutOrStdout(), source.Streams())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "discover",
		Short: "Print the catalog of every stream with its schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd.Context(), opts, cmd.OutOrStdout())
		},
	})

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync the selected streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), opts, cmd.Flags().Changed("trace"), cmd.Flags().Changed("validate"))
		},
	}
	syncCmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default stdout)")
	syncCmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while syncing")
	syncCmd.Flags().BoolVar(&opts.trace, "trace", false, "Export one span per stream sync to stderr")
	syncCmd.Flags().BoolVar(&opts.validate, "validate", false, "Validate every record against its schema")
	syncCmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Abort the sync after this long (0 = no limit)")
	root.AddCommand(syncCmd)

	return root
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig(opts *options, traceSet, validateSet bool) (*config.TapConfig, error) {
	cfg, err := config.LoadTapConfig(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.output != "" {
		cfg.Output.Path = opts.output
	}
	if opts.logLevel != "" {
		cfg.Observability.LogLevel = opts.logLevel
	}
	if len(opts.streams) > 0 {
		cfg.Streams = opts.streams
	}
	if opts.metricsAddr != "" {
		cfg.Observability.MetricsAddr = opts.metricsAddr
	}
	if traceSet {
		cfg.Observability.Tracing = opts.trace
	}
	if validateSet {
		cfg.ValidateRecords = opts.validate
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
	}); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}
	return cfg, nil
}

func openSource(ctx context.Context, cfg *config.TapConfig) (core.Source, error) {
	source, err := registry.CreateSource(returnless.ConnectorName)
	if err != nil {
		return nil, err
	}
	if err := source.Initialize(ctx, cfg); err != nil {
		return nil, err
	}
	return source, nil
}

func runDiscover(ctx context.Context, opts *options, out io.Writer) error {
	cfg, err := loadConfig(opts, false, false)
	if err != nil {
		return err
	}
	source, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer source.Close(ctx)

	catalog, err := source.Discover(ctx)
	if err != nil {
		return err
	}
	data, err := catalog.Marshal()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode catalog")
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func runSync(ctx context.Context, opts *options, traceSet, validateSet bool) error {
	cfg, err := loadConfig(opts, traceSet, validateSet)
	if err != nil {
		return err
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	syncID := uuid.NewString()
	ctx = logger.WithSyncID(ctx, syncID)
	log = log.With(zap.String("sync_id", syncID))

	tracing := observability.DefaultTracingConfig("tap-returnless", version)
	tracing.Enabled = cfg.Observability.Tracing
	shutdownTracing, err := observability.InitTracing(ctx, tracing, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		srv := startMetricsServer(addr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	out, err := protocol.OpenOutput(cfg.Output.Path, cfg.Output.Compression, cfg.Output.CompressionLevel)
	if err != nil {
		return err
	}

	source, err := openSource(ctx, cfg)
	if err != nil {
		_ = out.Close()
		return err
	}
	defer source.Close(context.Background())

	log.Info("sync starting",
		zap.String("output", out.Path()),
		zap.Strings("streams", cfg.Streams))
	timer := metrics.NewTimer()

	syncErr := source.Sync(ctx, out)
	if err := out.Close(); err != nil && syncErr == nil {
		syncErr = errors.Wrap(err, errors.ErrorTypeFile, "failed to close output")
	}
	if syncErr != nil {
		log.Error("sync failed", zap.Error(syncErr), zap.Duration("duration", timer.Stop()))
		return syncErr
	}
	log.Info("sync completed", zap.Duration("duration", timer.Stop()))
	return nil
}

func startMetricsServer(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func printStreams(out io.Writer, streams []core.StreamInfo) error {
	for _, s := range streams {
		line := fmt.Sprintf("%-24s %-36s %s", s.Name, s.Path, s.ReplicationMethod)
		if s.ReplicationKey != "" {
			line += " (" + s.ReplicationKey + ")"
		}
		if s.Parent != "" {
			line += " parent=" + s.Parent
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

// describeError renders a fatal error with its kind and, when known, the
// stream that failed.
func describeError(err error) string {
	var e *errors.Error
	if !errors.As(err, &e) {
		return "tap-returnless: " + err.Error()
	}
	msg := fmt.Sprintf("tap-returnless: %s error", e.Type)
	if stream, ok := e.Detail(errors.DetailStream); ok {
		msg += fmt.Sprintf(" in stream %v", stream)
	}
	return msg + ": " + err.Error()
}
