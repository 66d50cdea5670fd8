// Package server exposes the detection engine over HTTP: one-shot
// image analysis, guide presets, health and Prometheus metrics, plus a
// WebSocket endpoint that runs a live detection session per connection.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/guidealign/internal/boundary"
	"github.com/MeKo-Tech/guidealign/internal/classify"
	"github.com/MeKo-Tech/guidealign/internal/config"
	"github.com/MeKo-Tech/guidealign/internal/guide"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	cfg        *config.Config
	guides     guide.Set
	detector   boundary.Detector
	classifier *classify.Classifier
	corsOrigin string
}

// NewServer builds a server from the application config. The shared
// detector backs the one-shot /detect endpoint; live sessions get
// their own detector instance each.
func NewServer(cfg *config.Config) (*Server, error) {
	guides, err := loadGuides(cfg.Guides)
	if err != nil {
		return nil, fmt.Errorf("loading guide set: %w", err)
	}

	detector := boundary.New(detectorConfig(cfg.Boundary))
	if err := detector.Init(context.Background()); err != nil {
		return nil, fmt.Errorf("initializing boundary detector: %w", err)
	}

	classifierCfg := classify.Config{
		LandscapeRatio:      cfg.Detection.LandscapeRatio,
		PortraitRatio:       cfg.Detection.PortraitRatio,
		AmbiguousConfidence: cfg.Detection.AmbiguousConfidence,
	}
	if err := classifierCfg.Validate(); err != nil {
		return nil, fmt.Errorf("classifier config: %w", err)
	}

	return &Server{
		cfg:        cfg,
		guides:     guides,
		detector:   detector,
		classifier: classify.NewClassifier(classifierCfg),
		corsOrigin: cfg.Server.CORSOrigin,
	}, nil
}

func detectorConfig(cfg config.BoundaryConfig) boundary.Config {
	return boundary.Config{
		ModelPath:            cfg.ModelPath,
		ConfidenceThreshold:  cfg.ConfidenceThreshold,
		NumThreads:           cfg.NumThreads,
		UseHeuristicFallback: cfg.UseHeuristicFallback,
		HeuristicOnly:        cfg.HeuristicOnly,
	}
}

func loadGuides(cfg config.GuidesConfig) (guide.Set, error) {
	if cfg.Path == "" {
		return guide.DefaultSet(cfg.FrameWidth, cfg.FrameHeight), nil
	}
	return guide.LoadSet(cfg.Path)
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.detector != nil {
		return s.detector.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/guides", s.corsMiddleware(s.guidesHandler))
	mux.HandleFunc("/detect", s.corsMiddleware(s.detectHandler))
	mux.HandleFunc("/session", s.sessionHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Addr returns the host:port the server should listen on.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
}

// RequestTimeout returns the per-request timeout.
func (s *Server) RequestTimeout() time.Duration {
	return time.Duration(s.cfg.Server.TimeoutSec) * time.Second
}
