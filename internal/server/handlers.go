package server

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"time"

	_ "golang.org/x/image/bmp"

	"github.com/MeKo-Tech/guidealign/internal/boundary"
	"github.com/MeKo-Tech/guidealign/internal/classify"
	"github.com/MeKo-Tech/guidealign/internal/control"
	"github.com/MeKo-Tech/guidealign/internal/geometry"
	"github.com/MeKo-Tech/guidealign/internal/guide"
	"github.com/MeKo-Tech/guidealign/internal/version"
)

// HealthResponse is returned by the /health endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Detector string `json:"detector"`
	Ready    bool   `json:"ready"`
	Time     string `json:"time"`
}

// GuidesResponse lists the configured guide presets.
type GuidesResponse struct {
	Portrait  GuideInfo `json:"portrait"`
	Landscape GuideInfo `json:"landscape"`
}

// GuideInfo describes one guide preset.
type GuideInfo struct {
	Name    string        `json:"name"`
	Corners geometry.Quad `json:"corners"`
}

// DetectResponse is returned by the one-shot /detect endpoint.
type DetectResponse struct {
	Success bool           `json:"success"`
	Result  control.Result `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// maxDetectBodyBytes caps the request body for one-shot detection.
const maxDetectBodyBytes = 32 << 20

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:   "healthy",
		Version:  version.Version,
		Detector: string(s.detector.Source()),
		Ready:    s.detector.Ready(),
		Time:     time.Now().UTC().Format(time.RFC3339),
	}

	writeJSON(w, http.StatusOK, response)
}

// guidesHandler returns the configured guide presets.
func (s *Server) guidesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, GuidesResponse{
		Portrait:  guideInfo(s.guides.Portrait),
		Landscape: guideInfo(s.guides.Landscape),
	})
}

func guideInfo(g guide.Guide) GuideInfo {
	return GuideInfo{Name: g.Name, Corners: g.Corners}
}

// detectHandler runs a single detection pass on a posted image.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, _, err := image.Decode(http.MaxBytesReader(w, r.Body, maxDetectBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, DetectResponse{
			Success: false,
			Error:   fmt.Sprintf("decoding image: %v", err),
		})
		return
	}

	start := time.Now()
	det, err := s.detector.Detect(r.Context(), img)
	elapsed := time.Since(start)
	if err != nil {
		detectionsTotal.WithLabelValues("none", "error").Inc()
		writeJSON(w, http.StatusInternalServerError, DetectResponse{
			Success: false,
			Error:   fmt.Sprintf("boundary detection failed: %v", err),
		})
		return
	}

	result := s.buildResult(det, elapsed)
	detectionsTotal.WithLabelValues(result.Orientation.String(), string(result.Source)).Inc()
	detectDuration.WithLabelValues("oneshot").Observe(elapsed.Seconds())

	writeJSON(w, http.StatusOK, DetectResponse{Success: true, Result: result})
}

// buildResult classifies one detection the same way the live loop does.
func (s *Server) buildResult(det boundary.Detection, elapsed time.Duration) control.Result {
	metrics := control.Metrics{
		AreaRatio:        det.Metrics.AreaRatio,
		EdgeRatio:        det.Metrics.EdgeRatio,
		MinDistance:      det.Metrics.MinDistance,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}

	neutral := control.Result{Source: boundary.SourceNone, Metrics: metrics}
	if !det.Detected || det.Corners == nil {
		return neutral
	}

	quad := det.Corners.Quad()
	verdict := s.classifier.Classify(quad, det.Confidence)
	if verdict.Orientation == classify.None {
		return neutral
	}

	return control.Result{
		Orientation: verdict.Orientation,
		Confidence:  verdict.Confidence,
		Corners:     &quad,
		Detected:    true,
		Source:      s.detector.Source(),
		Metrics:     metrics,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
