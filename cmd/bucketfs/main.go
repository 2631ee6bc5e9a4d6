package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/koustreak/bucketfs/internal/config"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/filestore/memstore"
	"github.com/koustreak/bucketfs/internal/filestore/minio"
	"github.com/koustreak/bucketfs/internal/filestore/s3"
	"github.com/koustreak/bucketfs/internal/logger"
	"github.com/koustreak/bucketfs/internal/metrics"
	"github.com/koustreak/bucketfs/internal/s3fs"
	"github.com/koustreak/bucketfs/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *logger.Logger
	reg *prometheus.Registry
	fs  *s3fs.FileSystem
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "bucketfs",
		Short:         "Browse and serve an S3 bucket as a filesystem",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "configuration file path")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error, off)")

	root.AddCommand(
		a.serveCmd(),
		a.lsCmd(),
		a.dirsCmd(),
		a.catCmd(),
		a.putCmd(),
		a.rmCmd(),
		a.rmdirCmd(),
		a.statCmd(),
		a.urlCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.log = logger.New(cfg.LoggerConfig())
	a.reg = prometheus.NewRegistry()
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	bucket, err := s3fs.NewBucketConfig(cfg.BucketOptions())
	if err != nil {
		return err
	}
	a.fs = s3fs.New(bucket, dialerFor(cfg, bucket),
		s3fs.WithLogger(a.log),
		s3fs.WithMetrics(metrics.NewCollector(a.reg)),
		s3fs.WithOperationTimeout(cfg.Storage.OperationTimeout),
	)
	return nil
}

// dialerFor picks the storage provider named in cfg. Validate has already
// rejected unknown providers.
func dialerFor(cfg *config.Config, bucket s3fs.BucketConfig) filestore.Dialer {
	switch cfg.Storage.Provider {
	case config.ProviderMemory:
		return memstore.New(bucket.BucketName()).Dialer()
	case string(filestore.ProviderS3):
		return s3.NewDialer(cfg.StoreConfig(bucket))
	default:
		return minio.NewDialer(cfg.StoreConfig(bucket))
	}
}

func (a *app) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bucket filesystem over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := server.Config{
				Addr:         a.cfg.Server.Addr,
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
				MaxUpload:    a.cfg.Server.MaxUpload,
			}
			if addr != "" {
				sc.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.log.With().
				Str("version", version).
				Str("bucket", a.cfg.Bucket.Name).
				Str("provider", a.cfg.Storage.Provider).
				Logger().
				Info("starting bucketfs")

			srv := server.New(a.fs, sc, server.WithLogger(a.log), server.WithGatherer(a.reg))
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVarP(&addr, "listen", "l", "", "listen address (overrides server.addr)")
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
