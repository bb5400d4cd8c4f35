package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/getsentry/callprof"
	"github.com/getsentry/callprof/internal/export"
)

const (
	statisticsFile = "statistics.csv"
	framesFile     = "frames.csv"
)

func newRunCommand(cfg *ServiceConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Profile the simulation workload and export the statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s := callprof.New(callprof.Options{})
			record(s, *cfg)
			if err := exportResults(ctx, s, *cfg, cmd.OutOrStdout()); err != nil {
				sentry.CaptureException(err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Frames, "frames", cfg.Frames, "number of frames to record")
	cmd.Flags().IntVar(&cfg.Entities, "entities", cfg.Entities, "number of simulated entities")
	cmd.Flags().BoolVar(&cfg.MemoryProfiling, "memory", cfg.MemoryProfiling, "sample the working set at every call")
	cmd.Flags().StringVarP(&cfg.OutputDir, "output", "o", cfg.OutputDir, "directory the CSV tables are written to")
	cmd.Flags().BoolVar(&cfg.FrameStatistics, "frame-statistics", cfg.FrameStatistics, "also write one statistics table per frame")
	cmd.Flags().IntVar(&cfg.TopFunctions, "top", cfg.TopFunctions, "number of functions printed, 0 for all")
	return cmd
}

// record profiles cfg.Frames simulation ticks on the calling goroutine and
// analyzes them.
func record(s *callprof.Session, cfg ServiceConfig) {
	w := newWorld(s, cfg.Entities, cfg.Seed)
	s.SetTargetGoroutine(callprof.CurrentGoroutineID())
	s.SetMemoryProfiling(cfg.MemoryProfiling)

	s.Start()
	for i := 0; i < cfg.Frames; i++ {
		s.BeginFrame()
		w.tick()
		s.EndFrame()
	}
	s.Stop()
	s.Analyze()

	log.Info().
		Str("session_id", s.ID().String()).
		Int("frames", len(s.Frames())).
		Uint64("checksum", w.checksum).
		Msg("workload recorded")
}

func exportResults(ctx context.Context, s *callprof.Session, cfg ServiceConfig, out io.Writer) error {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	statisticsPath := filepath.Join(cfg.OutputDir, statisticsFile)
	if !callprof.SaveStatistics(statisticsPath, s.Statistics()) {
		return fmt.Errorf("can't write %s", statisticsPath)
	}
	framesPath := filepath.Join(cfg.OutputDir, framesFile)
	if !callprof.SaveFrames(framesPath, s) {
		return fmt.Errorf("can't write %s", framesPath)
	}
	if cfg.FrameStatistics {
		for i := range s.Frames() {
			p := filepath.Join(cfg.OutputDir, frameStatisticsFile(i))
			if !callprof.SaveStatistics(p, s.FrameStatistics(i)) {
				return fmt.Errorf("can't write %s", p)
			}
		}
	}

	if cfg.BucketURL != "" {
		if err := upload(ctx, s, cfg); err != nil {
			return err
		}
	}

	for _, m := range s.Messages() {
		log.Warn().Msg(m)
	}
	export.RenderTable(out, fmt.Sprintf("session %s", s.ID()), s.Statistics(), cfg.TopFunctions)
	return nil
}

func upload(ctx context.Context, s *callprof.Session, cfg ServiceConfig) error {
	sink, err := export.OpenBlobSink(ctx, cfg.BucketURL, s.ID().String(), cfg.CompressExports)
	if err != nil {
		return err
	}
	defer sink.Close()

	if err := sink.WriteStatistics(ctx, statisticsFile, s.Statistics()); err != nil {
		return err
	}
	if err := sink.WriteFrames(ctx, framesFile, s.Frames(), s.StartTicks(), s.Frequency()); err != nil {
		return err
	}
	if cfg.FrameStatistics {
		for i := range s.Frames() {
			if err := sink.WriteStatistics(ctx, frameStatisticsFile(i), s.FrameStatistics(i)); err != nil {
				return err
			}
		}
	}
	log.Info().Str("bucket", cfg.BucketURL).Str("prefix", sink.Prefix).Msg("statistics uploaded")
	return nil
}

func frameStatisticsFile(i int) string {
	return fmt.Sprintf("frame_%04d.csv", i)
}
