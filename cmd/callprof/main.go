package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/getsentry/callprof/internal/httputil"
	"github.com/getsentry/callprof/internal/logutil"
)

var release string

func newRootCommand(cfg *ServiceConfig) *cobra.Command {
	root := &cobra.Command{
		Use:           "callprof",
		Short:         "Instrumentation call profiler demo",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return logutil.SetLevel(cfg.LogLevel)
		},
	}
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "minimum log level")
	root.AddCommand(
		newRunCommand(cfg),
		newServeCommand(cfg),
		&cobra.Command{
			Use:   "version",
			Short: "Print the release",
			Run: func(cmd *cobra.Command, _ []string) {
				v := release
				if v == "" {
					v = "dev"
				}
				cmd.Println(v)
			},
		},
	)
	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func main() {
	logutil.ConfigureLogger()

	cfg, err := loadConfig(os.Getenv("CALLPROF_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("error setting up environment")
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		EnableTracing:    true,
		Environment:      cfg.Environment,
		Release:          release,
		TracesSampleRate: 1.0,
		BeforeSend:       httputil.SetHTTPStatusCodeTag,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}
	defer sentry.Flush(5 * time.Second)

	if err := newRootCommand(&cfg).ExecuteContext(context.Background()); err != nil {
		sentry.CaptureException(err)
		log.Error().Err(err).Msg("command failed")
		sentry.Flush(5 * time.Second)
		os.Exit(1)
	}
}
