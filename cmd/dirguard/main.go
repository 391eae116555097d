package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dashjay/dirguard/pkg/config"
	"github.com/dashjay/dirguard/pkg/core"
	"github.com/dashjay/dirguard/pkg/detect"
	"github.com/dashjay/dirguard/pkg/journal"
	"github.com/dashjay/dirguard/pkg/monitor"
	"github.com/dashjay/dirguard/pkg/remediate"
	"github.com/dashjay/dirguard/pkg/snapshot"
)

var version = "dev"

var flags struct {
	configFile  string
	logLevel    string
	pprofPort   string
	interval    string
	dryRun      bool
	journalPath string

	s3Accesskey string
	s3Secretkey string
	s3Endpoint  string
	s3Bucket    string
	s3Prefix    string
}

var rootCmd = &cobra.Command{
	Use:     "dirguard [directories...]",
	Short:   "Watch directories and remove entries that were not there at startup",
	Version: version,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, true)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg, args)
	},
	SilenceUsage: true,
}

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config-file", "", "config for dirguard")
	pf.StringVar(&flags.logLevel, "log-level", "info", "log level")
	pf.StringVar(&flags.journalPath, "journal-path", "", "bolt database recording every remediation")

	f := rootCmd.Flags()
	f.StringVar(&flags.pprofPort, "pprof-port", "", "port for pprof")
	f.StringVar(&flags.interval, "interval", config.DefaultInterval.String(), "pause between scan cycles")
	f.BoolVar(&flags.dryRun, "dry-run", false, "log unauthorized entries without removing them")
	f.StringVar(&flags.s3Accesskey, "s3.accesskey", "", "accesskey of aws s3")
	f.StringVar(&flags.s3Secretkey, "s3.secretkey", "", "secretkey of aws s3")
	f.StringVar(&flags.s3Endpoint, "s3.endpoint", "http://localhost:9000", "endpoint of s3")
	f.StringVar(&flags.s3Bucket, "s3.bucket", "", "quarantine bucket, empty disables quarantine")
	f.StringVar(&flags.s3Prefix, "s3.prefix", "dirguard", "prefix of quarantined objects")

	rootCmd.AddCommand(journalCmd)
}

// loadConfig reads the config file if any, then applies flags set explicitly.
// watch adds the flags only the root command has.
func loadConfig(cmd *cobra.Command, watch bool) (*config.Config, error) {
	cfg := config.Default()
	if flags.configFile != "" {
		var err error
		cfg, err = config.FromFile(flags.configFile)
		if err != nil {
			return nil, err
		}
	}
	changed := cmd.Flags().Changed
	set := func(name string, dst *string, val string) {
		if changed(name) {
			*dst = val
		}
	}
	set("log-level", &cfg.LogLevel, flags.logLevel)
	set("journal-path", &cfg.JournalPath, flags.journalPath)
	if watch {
		set("pprof-port", &cfg.PProfPort, flags.pprofPort)
		set("interval", &cfg.Interval, flags.interval)
		set("s3.accesskey", &cfg.S3Accesskey, flags.s3Accesskey)
		set("s3.secretkey", &cfg.S3Secretkey, flags.s3Secretkey)
		set("s3.endpoint", &cfg.S3Endpoint, flags.s3Endpoint)
		set("s3.bucket", &cfg.S3Bucket, flags.s3Bucket)
		set("s3.prefix", &cfg.S3Prefix, flags.s3Prefix)
		if changed("dry-run") {
			cfg.DryRun = flags.dryRun
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lvl, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(lvl)
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, roots []string) error {
	runID := uuid.New()
	logrus.WithField("run_id", runID).WithField("level", logrus.GetLevel()).Infoln("running dirguard")

	if cfg.PProfPort != "" {
		go http.ListenAndServe(cfg.PProfPort, nil)
	}

	var pb *progressbar.ProgressBar
	if logrus.GetLevel() < logrus.DebugLevel {
		pb = progressbar.Default(-1, "scanning")
	}
	dirs, err := monitor.Capture(snapshot.New(pb), roots)
	if pb != nil {
		_ = pb.Finish()
	}
	if err != nil {
		logrus.WithError(err).Fatalln("failed to scan directory")
	}

	opts := remediate.Options{RunID: runID, DryRun: cfg.DryRun}
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := j.Close(); err != nil {
				logrus.WithError(err).Errorln("close journal")
			}
		}()
		opts.Journal = j
	}
	if cfg.QuarantineEnabled() {
		s3Cli, err := core.NewS3Client(cfg)
		if err != nil {
			return err
		}
		opts.Quarantine = s3Cli
		logrus.WithField("bucket", cfg.S3Bucket).WithField("prefix", cfg.S3Prefix).Infoln("quarantine enabled")
	}

	loop := monitor.New(dirs, detect.New(), remediate.New(opts), cfg.PollInterval())
	err = loop.Run(ctx)
	logrus.WithError(err).Infoln("monitoring stopped")
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
