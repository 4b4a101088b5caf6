// Package api provides HTTP handlers and the main API server logic for Yenta.
//
// It exposes RESTful endpoints for prospect management, the staged
// qualification conversation, round scoring, and round-gate eligibility.
// The API integrates with the flow, scoring, notify, and store modules.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/carsonraft/yenta/internal/flow"
	"github.com/carsonraft/yenta/internal/notify"
	"github.com/carsonraft/yenta/internal/scoring"
	"github.com/carsonraft/yenta/internal/store"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address (host:port).
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the HTTP layer to the qualification flow and its collaborators.
type Server struct {
	st       store.Store
	qualFlow *flow.QualificationFlow
	gate     *flow.RoundGate
	quality  *flow.DataQualityAnalyzer
	scorer   scoring.ClientInterface
	notifier notify.Sender
	addr     string
}

// NewServer creates an API server over the given collaborators. The scorer
// and notifier may be nil; the corresponding endpoints degrade gracefully.
func NewServer(st store.Store, qualFlow *flow.QualificationFlow, gate *flow.RoundGate, quality *flow.DataQualityAnalyzer, scorer scoring.ClientInterface, notifier notify.Sender, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	slog.Debug("Server.NewServer: creating API server", "addr", cfg.Addr,
		"hasScorer", scorer != nil, "hasNotifier", notifier != nil)
	return &Server{
		st:       st,
		qualFlow: qualFlow,
		gate:     gate,
		quality:  quality,
		scorer:   scorer,
		notifier: notifier,
		addr:     cfg.Addr,
	}
}

// Routes builds the HTTP handler for the API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/api/v1/qualification/start", s.startQualificationHandler)
	mux.HandleFunc("/api/v1/qualification/respond", s.respondHandler)
	mux.HandleFunc("/api/v1/qualification/", s.qualificationSubHandler)
	mux.HandleFunc("/api/v1/prospects", s.prospectsHandler)
	mux.HandleFunc("/api/v1/prospects/", s.prospectSubHandler)
	return mux
}

// ListenAndServe starts the API server and blocks.
func (s *Server) ListenAndServe() error {
	slog.Info("Yenta API running", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Routes())
}

// Run builds the full application from options and starts the API server:
// store selection by DSN, extractor, qualification flow, gate, quality
// analyzer, scorer, and notifier.
func Run(storeOpts []store.Option, scoringOpts []scoring.Option, notifyOpts []notify.Option, apiOpts []Option) error {
	// Resolve store backend from DSN
	var storeCfg store.Opts
	for _, opt := range storeOpts {
		opt(&storeCfg)
	}

	var st store.Store
	var err error
	switch {
	case storeCfg.DSN == "":
		slog.Info("No DSN configured, using in-memory store")
		st = store.NewInMemoryStore()
	case store.DetectDSNType(storeCfg.DSN) == "postgres":
		slog.Info("Using Postgres store")
		st, err = store.NewPostgresStore(storeOpts...)
	default:
		slog.Info("Using SQLite store", "path", storeCfg.DSN)
		st, err = store.NewSQLiteStore(storeOpts...)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	// Scoring client is optional: without it the extractor falls back to
	// keyword rules and the score endpoint reports upstream failure.
	var scorer scoring.ClientInterface
	client, err := scoring.NewClient(scoringOpts...)
	if err != nil {
		slog.Warn("Scoring client unavailable, using rule-based extraction only", "error", err)
	} else {
		scorer = client
	}

	var extractor flow.Extractor
	rules := flow.NewRuleExtractor(nil)
	if scorer != nil {
		extractor = flow.NewLLMExtractor(scorer, rules)
	} else {
		extractor = rules
	}

	// Notifier is optional as well.
	var notifier notify.Sender
	sender, err := notify.NewClient(notifyOpts...)
	if err != nil {
		slog.Warn("Notifier unavailable, eligibility notifications disabled", "error", err)
	} else {
		notifier = sender
	}

	qualFlow := flow.NewQualificationFlow(st, extractor)
	gate := flow.NewRoundGate(st, flow.DefaultGateConfig())
	quality := flow.NewDataQualityAnalyzer(nil)

	srv := NewServer(st, qualFlow, gate, quality, scorer, notifier, apiOpts...)
	return srv.ListenAndServe()
}
