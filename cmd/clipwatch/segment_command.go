package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"clipwatch/internal/boundary"
	"clipwatch/internal/logging"
	"clipwatch/internal/media"
	"clipwatch/internal/phash"
)

type intervalView struct {
	Index int     `json:"index"`
	Start float64 `json:"start_seconds"`
	End   float64 `json:"end_seconds"`
	Clip  string  `json:"clip,omitempty"`
}

func newSegmentCommand(ctx *commandContext) *cobra.Command {
	var (
		outDir          string
		templates       string
		fixed           bool
		segmentDuration float64
		trimHead        float64
		trimTail        float64
		minDuration     float64
		dryRun          bool
		asJSON          bool
		verbose         bool
	)

	cmd := &cobra.Command{
		Use:   "segment <video>",
		Short: "Cut a recorded video into clips at detected reference boundaries",
		Long: `Replay boundary detection over a recorded file and cut the content between
reference clip runs into <name>_NNN_.mov files. Content before the first or
after the last reference run is not cut.

Without usable reference clips, or with --fixed, the file is split into
--segment-duration parts instead, each trimmed by --trim-head and --trim-tail.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			src, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if !fileExists(src) {
				return fmt.Errorf("video %s does not exist", src)
			}
			if templates == "" {
				templates = cfg.Paths.TemplateDir
			}
			if outDir == "" {
				outDir = cfg.Paths.ClipDir
			}

			if !cmd.Flags().Changed("min-duration") {
				minDuration = cfg.Detector.MinSegmentSeconds
			}
			if !cmd.Flags().Changed("segment-duration") {
				segmentDuration = float64(cfg.Recorder.SegmentSeconds)
			}
			if segmentDuration < 0 || trimHead < 0 || trimTail < 0 || minDuration < 0 {
				return fmt.Errorf("durations must not be negative")
			}

			useFixed := fixed
			var refs *phash.ReferenceSet
			if !useFixed {
				refs, err = loadReferences(cmd.Context(), cfg, templates, logger)
				if err != nil {
					return fmt.Errorf("load reference clips: %w", err)
				}
				useFixed = refs.Len() == 0
			}
			duration, err := probeDuration(cfg)(cmd.Context(), src)
			if err != nil {
				return fmt.Errorf("probe duration: %w", err)
			}

			var intervals []boundary.Interval
			if useFixed {
				intervals = boundary.FixedIntervals(duration, seconds(segmentDuration),
					seconds(trimHead), seconds(trimTail), seconds(minDuration))
				logger.Info("fixed split planned",
					logging.String(logging.FieldSourcePath, src),
					logging.Duration("duration", duration),
					logging.Int("intervals", len(intervals)),
				)
			} else {
				intervals, err = boundary.Scan(cmd.Context(), newDetector(cfg, refs), ffmpegFor(cfg), src, duration,
					seconds(cfg.Detector.SampleIntervalSeconds), seconds(minDuration))
				if err != nil {
					return fmt.Errorf("scan %s: %w", src, err)
				}
				logger.Info("boundary scan complete",
					logging.String(logging.FieldSourcePath, src),
					logging.Duration("duration", duration),
					logging.Int("intervals", len(intervals)),
				)
			}

			var clips []string
			if !dryRun && len(intervals) > 0 {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return fmt.Errorf("create clip directory: %w", err)
				}
				clips, err = boundary.CutIntervals(cmd.Context(), ffmpegFor(cfg), src, outDir, intervals)
				if err != nil {
					return fmt.Errorf("cut clip %d: %w", len(clips)+1, err)
				}
			}

			views := make([]intervalView, 0, len(intervals))
			for i, iv := range intervals {
				view := intervalView{Index: i + 1, Start: iv.Start.Seconds(), End: iv.End.Seconds()}
				if i < len(clips) {
					view.Clip = clips[i]
				}
				views = append(views, view)
			}
			if asJSON {
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				if useFixed {
					fmt.Fprintln(out, "No segments long enough to keep")
				} else {
					fmt.Fprintln(out, "No content between reference clips found")
				}
				return nil
			}
			if useFixed {
				fmt.Fprintf(out, "Fixed split (%s per segment)\n", formatSegmentLength(segmentDuration))
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				clip := v.Clip
				if clip == "" {
					clip = boundary.ClipName(src, v.Index)
				}
				rows = append(rows, []string{
					strconv.Itoa(v.Index),
					formatOffset(intervals[v.Index-1].Start),
					formatOffset(intervals[v.Index-1].End),
					clip,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Start", "End", "Clip"}, rows,
				[]columnAlignment{alignRight, alignRight, alignRight}))
			if dryRun {
				fmt.Fprintln(out, "Dry run: no clips written")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Clip output directory (defaults to paths.clip_dir)")
	cmd.Flags().StringVar(&templates, "templates", "", "Reference clip directory (defaults to paths.template_dir)")
	cmd.Flags().BoolVar(&fixed, "fixed", false, "Split into fixed-length segments even when reference clips exist")
	cmd.Flags().Float64Var(&segmentDuration, "segment-duration", 0, "Fixed segment length in seconds, 0 keeps the whole file (defaults to recorder.segment_seconds)")
	cmd.Flags().Float64Var(&trimHead, "trim-head", 0, "Seconds trimmed from the start of each fixed segment")
	cmd.Flags().Float64Var(&trimTail, "trim-tail", 0, "Seconds trimmed from the end of each fixed segment")
	cmd.Flags().Float64Var(&minDuration, "min-duration", 0, "Drop clips shorter than this many seconds (defaults to detector.min_segment_seconds)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report intervals without cutting")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	return cmd
}

func newSignaturesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "signatures [clip-or-dir...]",
		Short: "Print the perceptual hash signature of reference clips",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(false)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if len(args) == 0 {
				args = []string{cfg.Paths.TemplateDir}
			}
			paths, err := expandClipArgs(args)
			if err != nil {
				return err
			}
			builder := referenceBuilder(cfg, logger)

			type signatureView struct {
				Path    string `json:"path"`
				Hash    string `json:"hash,omitempty"`
				Samples int    `json:"samples"`
				Error   string `json:"error,omitempty"`
			}
			views := make([]signatureView, 0, len(paths))
			for _, path := range paths {
				sig, err := builder.Build(cmd.Context(), path)
				if err != nil {
					if cmd.Context().Err() != nil {
						return cmd.Context().Err()
					}
					views = append(views, signatureView{Path: path, Error: err.Error()})
					continue
				}
				views = append(views, signatureView{Path: path, Hash: sig.Hash.String(), Samples: sig.Samples})
			}
			if asJSON {
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "No reference clips found")
				return nil
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				hash := v.Hash
				if v.Error != "" {
					hash = "error: " + v.Error
				}
				rows = append(rows, []string{filepath.Base(v.Path), hash, strconv.Itoa(v.Samples)})
			}
			fmt.Fprintln(out, renderTable([]string{"Clip", "Signature", "Samples"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

// expandClipArgs replaces directories with the videos they contain.
func expandClipArgs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			abs, err := filepath.Abs(arg)
			if err != nil {
				return nil, err
			}
			paths = append(paths, abs)
			continue
		}
		videos, err := media.ListVideos(arg)
		if err != nil {
			return nil, err
		}
		for _, v := range videos {
			paths = append(paths, v.Path)
		}
	}
	return paths, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func formatOffset(d time.Duration) string {
	d = d.Round(100 * time.Millisecond)
	minutes := int(d / time.Minute)
	secs := (d % time.Minute).Seconds()
	return fmt.Sprintf("%02d:%04.1f", minutes, secs)
}

func formatSegmentLength(secs float64) string {
	if secs <= 0 {
		return "whole file"
	}
	return strconv.FormatFloat(secs, 'f', -1, 64) + "s"
}
