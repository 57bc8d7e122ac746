package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ligustah/turbodl/internal/config"
	"github.com/ligustah/turbodl/pkg/turbodl"
)

func newDownloadCmd() *cobra.Command {
	var (
		destFile     string
		chunkSize    string
		concurrency  int
		retryCount   int
		noResume     bool
		noProgress   bool
		fillFileByte int
	)

	cmd := &cobra.Command{
		Use:   "download [URL]",
		Short: "Download a file, in parallel chunks, resuming if interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(configFile)
			if err != nil {
				return err
			}

			override := config.Config{
				URL:         args[0],
				DestFile:    destFile,
				Concurrency: concurrency,
				RetryCount:  retryCount,
			}
			if chunkSize != "" {
				size, err := humanize.ParseBytes(chunkSize)
				if err != nil {
					return fmt.Errorf("parse --chunk-size: %w", err)
				}
				override.ChunkSize = int64(size)
			}
			cfg = cfg.Merge(override)

			// Bools have no unset state, so flag overrides are applied
			// directly rather than through Merge's zero-value convention.
			if cmd.Flags().Changed("no-resume") {
				cfg.CanBeResumed = !noResume
			}
			if cmd.Flags().Changed("no-progress") {
				cfg.Progress = !noProgress
			}
			if cmd.Flags().Changed("fill-byte") {
				cfg.FillFileByte = byte(fillFileByte)
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			return runDownload(cfg)
		},
	}

	cmd.Flags().StringVarP(&destFile, "output", "o", "", "Destination file path (required)")
	cmd.Flags().StringVar(&chunkSize, "chunk-size", "", "Bytes per chunk, e.g. 16MiB (default from config)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of chunks downloaded in parallel (default from config)")
	cmd.Flags().IntVar(&retryCount, "retries", 0, "Retries per chunk before giving up (default from config)")
	cmd.Flags().BoolVar(&noResume, "no-resume", false, "Disable manifest persistence and resume support")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the terminal progress display")
	cmd.Flags().IntVar(&fillFileByte, "fill-byte", 0, "Byte value to preallocate the destination file with")
	cmd.MarkFlagRequired("output")

	return cmd
}

func resolveConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(path)
}

func runDownload(cfg config.Config) error {
	sessionCfg := turbodl.Config{
		URL:          cfg.URL,
		DestFile:     cfg.DestFile,
		ChunkSize:    cfg.ChunkSize,
		Concurrency:  cfg.Concurrency,
		RetryCount:   cfg.RetryCount,
		CanBeResumed: cfg.CanBeResumed,
		FillFileByte: cfg.FillFileByte,
	}

	sess, err := newSession(sessionCfg, cfg.Progress)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		interrupts := 0
		for range sigCh {
			interrupts++
			if interrupts == 1 {
				fmt.Fprintln(os.Stderr, "\n[turbodl] interrupted, saving progress (press again to discard and exit)")
				sess.Abort(true)
			} else {
				fmt.Fprintln(os.Stderr, "\n[turbodl] discarding progress and exiting")
				sess.Abort(false)
				cancel()
			}
		}
	}()

	log.Info().Str("session", sessionID).Str("url", cfg.URL).Msg("starting download")

	if err := sess.Start(ctx); err != nil {
		return err
	}
	return nil
}
