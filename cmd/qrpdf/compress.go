package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/QuickTools-one/qr-pdf-compress/internal/codec"
	"github.com/QuickTools-one/qr-pdf-compress/internal/progress"
)

var (
	compressOutput    string
	compressPreset    string
	compressChunkSize int
	compressDPI       int
	compressQuality   int
	compressStrategy  string
	compressNoDegrade bool
	compressTitle     string
	compressAuthor    string
	compressQuiet     bool
)

var compressCmd = &cobra.Command{
	Use:   "compress <input.pdf>",
	Short: "Compress a PDF document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgMgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cfgMgr.Get()
		logger := setupLogger(cfg)

		inputPath := args[0]
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		svc, err := buildService(cfg, logger)
		if err != nil {
			return err
		}

		opts := jobDefaults(cfg)
		if compressPreset != "" {
			opts.Preset = compressPreset
		}
		if compressChunkSize > 0 {
			opts.ChunkSize = compressChunkSize
		}
		if compressDPI > 0 {
			opts.TargetDPI = compressDPI
		}
		if compressQuality > 0 {
			opts.Quality = compressQuality
		}
		if compressStrategy != "" {
			opts.MergeStrategy = compressStrategy
		}
		if compressNoDegrade {
			opts.DisableDegradation = true
		}
		if compressTitle != "" || compressAuthor != "" {
			opts.Metadata = &codec.Metadata{Title: compressTitle, Author: compressAuthor}
		}
		if !compressQuiet {
			opts.OnProgress = printProgress
		}

		result, err := svc.Compress(cmd.Context(), data, opts)
		if err != nil {
			return err
		}

		outPath := compressOutput
		if outPath == "" {
			ext := filepath.Ext(inputPath)
			outPath = strings.TrimSuffix(inputPath, ext) + ".compressed" + ext
		}
		if err := os.WriteFile(outPath, result.Artifact, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}

		if !compressQuiet {
			fmt.Fprintln(os.Stderr)
		}
		fmt.Printf("%s -> %s\n", inputPath, outPath)
		fmt.Printf("  %d -> %d bytes (%.1f%% saved, preset %s, %d chunks, %s)\n",
			result.Stats.OriginalSize, result.Stats.CompressedSize,
			result.Stats.PercentageSaved, result.Stats.PresetUsed,
			result.Stats.ChunksProcessed, result.Stats.ProcessingTime.Round(10*time.Millisecond))
		if result.Warning != "" {
			fmt.Printf("  warning: %s\n", result.Warning)
		}
		return nil
	},
}

func init() {
	compressCmd.Flags().StringVarP(&compressOutput, "output", "o", "", "output path (default: <input>.compressed.pdf)")
	compressCmd.Flags().StringVarP(&compressPreset, "preset", "p", "", "preset: lossless, balanced, max")
	compressCmd.Flags().IntVar(&compressChunkSize, "chunk-size", 0, "pages per chunk (0 = auto)")
	compressCmd.Flags().IntVar(&compressDPI, "dpi", 0, "target image DPI (0 = preset default)")
	compressCmd.Flags().IntVar(&compressQuality, "quality", 0, "JPEG quality 1-100 (0 = preset default)")
	compressCmd.Flags().StringVar(&compressStrategy, "merge-strategy", "", "merge strategy: isolated or inline")
	compressCmd.Flags().BoolVar(&compressNoDegrade, "no-degradation", false, "fail instead of retrying with milder presets")
	compressCmd.Flags().StringVar(&compressTitle, "title", "", "set document title on the output")
	compressCmd.Flags().StringVar(&compressAuthor, "author", "", "set document author on the output")
	compressCmd.Flags().BoolVarP(&compressQuiet, "quiet", "q", false, "suppress progress output")
}

// printProgress renders progress updates on a single rewritten line.
func printProgress(u progress.Update) {
	line := fmt.Sprintf("\r[%-14s] %5.1f%%", u.Phase, u.Progress)
	if u.Phase == progress.PhaseCompressing && u.TotalChunks > 0 {
		line += fmt.Sprintf("  chunk %d/%d", u.CurrentChunk, u.TotalChunks)
		if u.EstimatedRemaining > 0 {
			line += fmt.Sprintf("  ~%s left", u.EstimatedRemaining.Round(time.Second))
		}
	}
	if u.Message != "" {
		line += "  " + u.Message
	}
	fmt.Fprint(os.Stderr, line)
}
