package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/tipopdf/internal/config"
	"github.com/Lllllllleong/tipopdf/internal/metrics"
	"github.com/Lllllllleong/tipopdf/internal/services"
)

var (
	srcPattern = regexp.MustCompile(`^(PP|AP)\d+$`)
	dstPattern = regexp.MustCompile(`^(app)?\d{6}$`)
)

const examples = `  tipo-pdf -s PP1024020 -d 201307
  tipo-pdf -s AP2013111401 -d app201307
  tipo-pdf -s PP1024016,PP1024017,PP1024018 -d 201306 -i /data/tiff -o /data/pdf -r`

type flags struct {
	src           string
	dst           string
	srcPrefix     string
	dstPrefix     string
	resumeOnError bool
	skip          int
	skipIfExists  bool
	report        string
	metrics       string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "tipo-pdf",
		Short:         "Assemble scanned patent page images into watermarked PDFs",
		Long:          `Builds one watermarked PDF per patent directory of the given CD volumes and publishes it as TW<id>.pdf in the target folder.`,
		Example:       examples,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := buildOptions(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.src, "src", "s", "", "PatImg dir names, ex: PP1024016,PP1024017,PP1024018")
	fs.StringVarP(&f.dst, "dst", "d", "", "PatPdf dir name, ex: 201306")
	fs.StringVarP(&f.srcPrefix, "src-prefix", "i", "", "PatImg dir prefix, ex: path/to/tiff")
	fs.StringVarP(&f.dstPrefix, "dst-prefix", "o", "", "PatPdf dir prefix, ex: path/to/pdf")
	fs.BoolVarP(&f.resumeOnError, "resume-on-error", "r", false, "Continue with the next unit on error")
	fs.IntVar(&f.skip, "skip", 0, "Skip the first N units of each volume without scanning them")
	fs.BoolVar(&f.skipIfExists, "skip-if-exists", true, "Skip units whose PDF is already published")
	fs.StringVar(&f.report, "report", "", "Write a JSON run report to this file")
	fs.StringVar(&f.metrics, "metrics", "", "Write Prometheus metrics in text format to this file")
	_ = cmd.MarkFlagRequired("src")
	_ = cmd.MarkFlagRequired("dst")
	return cmd
}

// buildOptions layers defaults, .env, environment and flags.
func buildOptions(cmd *cobra.Command, f flags) (config.Options, error) {
	volumes := strings.Split(f.src, ",")
	for _, v := range volumes {
		if !srcPattern.MatchString(v) {
			return config.Options{}, fmt.Errorf("incorrect PatImg dir name %q", v)
		}
	}
	if !dstPattern.MatchString(f.dst) {
		return config.Options{}, fmt.Errorf("incorrect PatPdf dir name %q", f.dst)
	}

	if _, err := config.LoadEnvFile(""); err != nil {
		return config.Options{}, err
	}
	opts, err := config.FromEnv(config.Defaults())
	if err != nil {
		return config.Options{}, err
	}

	opts.Volumes = volumes
	opts.TargetFolder = f.dst
	fs := cmd.Flags()
	if fs.Changed("src-prefix") {
		opts.SrcPrefix = f.srcPrefix
	}
	if fs.Changed("dst-prefix") {
		opts.DstPrefix = f.dstPrefix
	}
	if fs.Changed("resume-on-error") {
		opts.ResumeOnError = f.resumeOnError
	}
	if fs.Changed("skip") {
		opts.Skip = f.skip
	}
	if fs.Changed("skip-if-exists") {
		opts.SkipIfExists = f.skipIfExists
	}
	if fs.Changed("report") {
		opts.ReportFile = f.report
	}
	if fs.Changed("metrics") {
		opts.MetricsFile = f.metrics
	}
	if err := opts.Validate(); err != nil {
		return config.Options{}, fmt.Errorf("invalid options: %w", err)
	}
	return opts, nil
}

func newLogger(opts config.Options, w io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.LogLevel}
	if opts.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(w, handlerOpts))
}

func run(ctx context.Context, opts config.Options, stdout, stderr io.Writer) error {
	// --- Set up structured logging ---
	logger := newLogger(opts, stderr)
	slog.SetDefault(logger)

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if opts.MetricsFile != "" {
		recorder = metrics.NewPrometheusRecorder(nil)
	}

	runner := services.NewBatchRunner(opts, services.NewProcessor(opts, logger), services.NewTextReporter(stdout), recorder, logger)
	_, err := runner.Run(ctx)
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
