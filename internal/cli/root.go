package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/docker/go-units"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/ytget/mf-downloader/internal/config"
	"github.com/ytget/mf-downloader/internal/download"
	"github.com/ytget/mf-downloader/internal/model"
	"github.com/ytget/mf-downloader/internal/platform"
)

const (
	AppName = "mf-downloader"

	exitOK    = 0
	exitError = 1
)

// ErrFailedURLs is returned in strict mode when at least one URL failed
var ErrFailedURLs = errors.New("some URLs failed")

type flagValues struct {
	outputFolder string
	quiet        bool
	verbose      bool
	strict       bool
	timeout      time.Duration
	maxHops      int
	rate         float64
	userAgent    string
}

// NewRootCommand creates the command; flag defaults come from settings
func NewRootCommand(version string, settings *config.Settings) *cobra.Command {
	var fv flagValues

	cmd := &cobra.Command{
		Use:           AppName + " [csv_file]",
		Short:         "Download files from share links listed in a CSV file",
		Long:          "Reads share links from the first column of a CSV file (default " + config.DefaultInputPath + "),\nresolves each one to its direct download and saves it into the output folder.\nFailed links are listed in " + download.ErrorLogName + " inside the output folder.",
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				settings.SetInputPath(args[0])
			}
			fv.apply(settings)
			return run(cmd.Context(), settings, cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&fv.outputFolder, "output-folder", "o", settings.GetOutputFolder(), "Output folder for downloaded files")
	flags.BoolVarP(&fv.quiet, "quiet", "q", settings.IsQuiet(), "Hide progress output")
	flags.BoolVarP(&fv.verbose, "verbose", "v", settings.IsVerbose(), "Show debug diagnostics")
	flags.BoolVar(&fv.strict, "strict", settings.IsStrict(), "Exit with status 1 if any URL failed")
	flags.DurationVar(&fv.timeout, "timeout", settings.GetTimeout(), "Time to wait for each response's headers")
	flags.IntVar(&fv.maxHops, "max-hops", settings.GetMaxHops(), "Maximum requests used to resolve one link")
	flags.Float64Var(&fv.rate, "rate", settings.GetRequestsPerSecond(), "Maximum requests per second (0 = unlimited)")
	flags.StringVar(&fv.userAgent, "user-agent", settings.GetUserAgent(), "User-Agent header sent with requests")

	return cmd
}

func (fv *flagValues) apply(settings *config.Settings) {
	settings.SetOutputFolder(fv.outputFolder)
	settings.SetQuiet(fv.quiet)
	settings.SetVerbose(fv.verbose)
	settings.SetStrict(fv.strict)
	settings.SetTimeout(fv.timeout)
	settings.SetMaxHops(fv.maxHops)
	settings.SetRequestsPerSecond(fv.rate)
	settings.SetUserAgent(fv.userAgent)
}

func newLogger(w io.Writer, settings *config.Settings) *log.Logger {
	level := log.InfoLevel
	switch {
	case settings.IsVerbose():
		level = log.DebugLevel
	case settings.IsQuiet():
		level = log.WarnLevel
	}
	return &log.Logger{Handler: clihandler.New(w), Level: level}
}

func run(ctx context.Context, settings *config.Settings, stderr io.Writer) error {
	logger := newLogger(stderr, settings)

	inputPath := settings.GetInputPath()
	urls, err := platform.ReadURLList(inputPath)
	if err != nil {
		return &download.FetchError{Kind: download.KindInput, URL: inputPath, Err: err}
	}

	outputFolder := settings.GetOutputFolder()
	fs := osfs.New(outputFolder)

	fetcher := download.NewFetcher(fs, download.Options{
		Quiet:             settings.IsQuiet(),
		MaxHops:           settings.GetMaxHops(),
		Timeout:           settings.GetTimeout(),
		UserAgent:         settings.GetUserAgent(),
		RequestsPerSecond: settings.GetRequestsPerSecond(),
		Progress:          stderr,
		Logger:            logger,
	})
	var service download.Runner = download.NewService(fetcher, fs, logger)
	service.SetUpdateCallback(logTaskUpdate(logger))

	logger.WithFields(log.Fields{
		"input":  inputPath,
		"output": outputFolder,
		"urls":   len(urls),
	}).Debug("starting batch")

	report, err := service.Run(ctx, urls)
	if report != nil {
		logSummary(logger, report, filepath.Join(outputFolder, download.ErrorLogName))
	}
	if err != nil {
		return err
	}

	if settings.IsStrict() && report.HasFailures() {
		return fmt.Errorf("%w: %d of %d", ErrFailedURLs, report.Failed, len(report.Tasks))
	}
	return nil
}

// logTaskUpdate traces each task as it starts and finishes
func logTaskUpdate(logger log.Interface) func(*model.DownloadTask) {
	return func(task *model.DownloadTask) {
		entry := logger.WithFields(log.Fields{
			"index":  task.Index,
			"status": task.Status,
		})
		switch {
		case task.Status.IsActive():
			entry.WithField("url", task.URL).Debug("task started")
		case task.Status.IsFinished():
			entry.WithField("elapsed", task.Elapsed().Round(time.Millisecond)).Debug("task finished")
		}
	}
}

func logSummary(logger log.Interface, report *model.BatchReport, errorLogPath string) {
	logger.WithFields(log.Fields{
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"written":   units.BytesSize(float64(report.BytesWritten)),
	}).Info("done")

	if !report.HasFailures() {
		return
	}
	for _, task := range report.FailedTasks() {
		logger.WithFields(log.Fields{
			"index":   task.Index,
			"kind":    task.ErrorKind,
			"elapsed": task.Elapsed().Round(time.Millisecond),
		}).Warnf("failed: %s", task.GetDisplayTitle())
	}
	logger.WithField("log", errorLogPath).Warnf("%d URL(s) failed", report.Failed)
}

// Execute runs the command line and returns the process exit code
func Execute(version string) int {
	store, err := config.LoadStore(config.DefaultEnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand(version, config.NewSettings(store))
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return exitError
	}
	return exitOK
}
