package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clipwatch/internal/api"
	"clipwatch/internal/boundary"
	"clipwatch/internal/logging"
	"clipwatch/internal/media"
	"clipwatch/internal/recorder"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var (
		mode        string
		segmentSecs int
		route       string
		source      string
		format      string
		workDir     string
		keep        bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Record a live source into segments and upload them to the gateway",
		Long: `Record a live capture source with ffmpeg and upload each finished segment.

In fixed mode a segment is cut every --segment-seconds. In boundary mode the
source is sampled against the reference clips in paths.template_dir: a
segment ends when a reference clip appears and the next one starts when it
leaves. Boundary mode falls back to fixed segments when no reference clip
can be signed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			if mode == "" {
				mode = cfg.Recorder.Mode
			}
			if segmentSecs <= 0 {
				segmentSecs = cfg.Recorder.SegmentSeconds
			}
			if route == "" {
				route = cfg.Recorder.UploadRoute
			}
			if workDir == "" {
				workDir = filepath.Join(cfg.Paths.DataDir, "capture")
			}
			input := media.Input{Format: cfg.Recorder.SourceFormat, Source: cfg.Recorder.Source}
			if strings.TrimSpace(format) != "" {
				input.Format = format
			}
			if strings.TrimSpace(source) != "" {
				input.Source = source
			}
			switch recorder.Mode(mode) {
			case recorder.ModeFixed, recorder.ModeBoundary:
			default:
				return fmt.Errorf("unknown capture mode %q (want fixed or boundary)", mode)
			}
			switch route {
			case api.RouteSaveVideo, api.RouteSaveVideoAuto, api.RouteSearch:
			default:
				return fmt.Errorf("unknown upload route %q", route)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var sampler *boundary.Sampler
			if recorder.Mode(mode) == recorder.ModeBoundary && cfg.Detector.Enabled {
				refs, err := loadReferences(runCtx, cfg, cfg.Paths.TemplateDir, logger)
				if err != nil {
					return fmt.Errorf("load reference clips: %w", err)
				}
				logger.Info("reference clips loaded",
					logging.Int("count", refs.Len()),
					logging.String("template_dir", cfg.Paths.TemplateDir),
				)
				sampler = &boundary.Sampler{
					Detector: newDetector(cfg, refs),
					Source:   boundary.LiveSource{Grabber: ffmpegFor(cfg), Input: input},
					Interval: seconds(cfg.Detector.SampleIntervalSeconds),
					Logger:   logger,
				}
			}

			encoder := &recorder.FFmpegEncoder{Binary: cfg.Recorder.FFmpegBinary, Input: input}
			uploader := recorder.GatewayUploader{Client: ctx.gatewayClient(), Route: route}
			rec := recorder.New(recorder.Options{
				Mode:          recorder.Mode(mode),
				SegmentLength: time.Duration(segmentSecs) * time.Second,
				WorkDir:       workDir,
				ResetOnExit:   cfg.Detector.ResetOnExit,
				KeepSegments:  keep,
			}, encoder, uploader, logger)

			logger.Info("capture started",
				logging.String("mode", mode),
				logging.String("source", input.Source),
				logging.String("gateway", ctx.gatewayURL()),
				logging.String("route", route),
			)
			runErr := rec.Run(runCtx, sampler)
			rec.Wait()

			out := cmd.OutOrStdout()
			uploads := rec.Uploads()
			fmt.Fprintf(out, "Capture stopped: %s\n", rec.Status())
			fmt.Fprintf(out, "Segments uploaded this session: %d\n", len(uploads))
			for _, u := range uploads {
				switch {
				case u.StoredPath != "":
					fmt.Fprintf(out, "  %s -> %s\n", filepath.Base(u.Segment), u.StoredPath)
				case len(u.RequestIDs) > 0:
					fmt.Fprintf(out, "  %s -> search %s\n", filepath.Base(u.Segment), strings.Join(u.RequestIDs, ", "))
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Segmentation mode: fixed or boundary (defaults to recorder.mode)")
	cmd.Flags().IntVar(&segmentSecs, "segment-seconds", 0, "Fixed segment length, clamped to 1-60s")
	cmd.Flags().StringVar(&route, "route", "", "Upload route: save-video, save-video-auto or search")
	cmd.Flags().StringVar(&source, "source", "", "Capture source passed to ffmpeg -i")
	cmd.Flags().StringVar(&format, "format", "", "Capture input format passed to ffmpeg -f")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "Directory for segments awaiting upload")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep local segment files after upload")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	return cmd
}
