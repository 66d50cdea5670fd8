package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/guidealign/internal/boundary"
	"github.com/MeKo-Tech/guidealign/internal/classify"
	"github.com/MeKo-Tech/guidealign/internal/control"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// AnalysisReport is the per-file result of the analyze command.
type AnalysisReport struct {
	File   string         `json:"file"`
	Result control.Result `json:"result"`
	Error  string         `json:"error,omitempty"`
}

// analyzeCmd represents the analyze command.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [files or directories]",
	Short: "Detect photo boundaries and orientation in still images",
	Long: `Run the boundary detector once over each input image and report
the detected photo orientation.

Supported formats: JPEG, PNG, BMP, TIFF

Examples:
  guidealign analyze photo.jpg
  guidealign analyze frames/ --format json
  guidealign analyze scan.png --model boundary.onnx`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg := GetConfig()

		format, _ := cmd.Flags().GetString("format")
		if format != outputFormatText && format != outputFormatJSON {
			return fmt.Errorf("invalid output format: %s (must be text or json)", format)
		}

		if cmd.Flags().Changed("confidence") {
			cfg.Boundary.ConfidenceThreshold, _ = cmd.Flags().GetFloat64("confidence")
		}
		if cfg.Boundary.ConfidenceThreshold < 0 || cfg.Boundary.ConfidenceThreshold > 1 {
			return fmt.Errorf("invalid confidence threshold: %.2f (must be between 0.0 and 1.0)",
				cfg.Boundary.ConfidenceThreshold)
		}
		if err := cfg.Boundary.Validate(); err != nil {
			return fmt.Errorf("invalid detector configuration: %w", err)
		}

		files, err := collectImageFiles(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return errors.New("no image files found in the given inputs")
		}

		detector := boundary.New(boundary.Config{
			ModelPath:            cfg.Boundary.ModelPath,
			ConfidenceThreshold:  cfg.Boundary.ConfidenceThreshold,
			NumThreads:           cfg.Boundary.NumThreads,
			UseHeuristicFallback: cfg.Boundary.UseHeuristicFallback,
			HeuristicOnly:        cfg.Boundary.HeuristicOnly,
		})
		defer func() { _ = detector.Close() }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := detector.Init(ctx); err != nil {
			return fmt.Errorf("initializing boundary detector: %w", err)
		}

		classifier := classify.NewClassifier(classify.Config{
			LandscapeRatio:      cfg.Detection.LandscapeRatio,
			PortraitRatio:       cfg.Detection.PortraitRatio,
			AmbiguousConfidence: cfg.Detection.AmbiguousConfidence,
		})

		reports := make([]AnalysisReport, 0, len(files))
		for _, file := range files {
			reports = append(reports, analyzeFile(ctx, detector, classifier, file))
		}

		out := cmd.OutOrStdout()
		if outputFile, _ := cmd.Flags().GetString("output"); outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer func() { _ = f.Close() }()
			out = f
		}

		if format == outputFormatJSON {
			return writeReportsJSON(out, reports)
		}
		return writeReportsText(out, reports)
	},
}

// collectImageFiles expands the arguments into a sorted list of image
// paths. Directories are scanned one level deep.
func collectImageFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("reading input %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if isImageFile(entry.Name()) {
				files = append(files, filepath.Join(arg, entry.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff":
		return true
	default:
		return false
	}
}

// analyzeFile runs one detection pass and classifies the outcome.
func analyzeFile(ctx context.Context, detector boundary.Detector, classifier *classify.Classifier, file string) AnalysisReport {
	report := AnalysisReport{File: file}

	img, err := imaging.Open(file, imaging.AutoOrientation(true))
	if err != nil {
		report.Error = fmt.Sprintf("loading image: %v", err)
		return report
	}

	start := time.Now()
	det, err := detector.Detect(ctx, img)
	elapsed := time.Since(start)
	if err != nil {
		report.Error = fmt.Sprintf("detection failed: %v", err)
		return report
	}

	metrics := control.Metrics{
		AreaRatio:        det.Metrics.AreaRatio,
		EdgeRatio:        det.Metrics.EdgeRatio,
		MinDistance:      det.Metrics.MinDistance,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
	report.Result = control.Result{Source: boundary.SourceNone, Metrics: metrics}

	if !det.Detected || det.Corners == nil {
		return report
	}

	quad := det.Corners.Quad()
	verdict := classifier.Classify(quad, det.Confidence)
	if verdict.Orientation == classify.None {
		return report
	}

	report.Result = control.Result{
		Orientation: verdict.Orientation,
		Confidence:  verdict.Confidence,
		Corners:     &quad,
		Detected:    true,
		Source:      detector.Source(),
		Metrics:     metrics,
	}
	return report
}

func writeReportsJSON(w io.Writer, reports []AnalysisReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

func writeReportsText(w io.Writer, reports []AnalysisReport) error {
	for _, r := range reports {
		if r.Error != "" {
			if _, err := fmt.Fprintf(w, "%s: error: %s\n", r.File, r.Error); err != nil {
				return err
			}
			continue
		}
		if !r.Result.Detected {
			if _, err := fmt.Fprintf(w, "%s: no photo detected (%dms)\n",
				r.File, r.Result.Metrics.ProcessingTimeMs); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %s (confidence %.2f, source %s, %dms)\n",
			r.File, r.Result.Orientation, r.Result.Confidence,
			r.Result.Source, r.Result.Metrics.ProcessingTimeMs); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
	analyzeCmd.Flags().StringP("output", "o", "", "write results to a file instead of stdout")
	analyzeCmd.Flags().Float64P("confidence", "c", 0.6, "detector confidence threshold (0..1)")
}
