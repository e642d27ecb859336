package gateway

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yieldnet/config"
	"yieldnet/core/state"
	"yieldnet/native/agreement"
	"yieldnet/native/governance"
	"yieldnet/native/ledger"
	"yieldnet/native/registry"
	"yieldnet/observability/metrics"
)

// Server is the HTTP surface over the engines. A single mutex serialises all
// mutating operations so each engine call observes and writes a consistent
// state snapshot.
type Server struct {
	mu sync.Mutex

	state      *state.Manager
	registry   *registry.Engine
	agreements *agreement.Engine
	ledgers    *ledger.Engine
	gov        *governance.Engine

	logger  *slog.Logger
	metrics *metrics.EngineMetrics
	limiter *rateLimiter
}

// Deps bundles the constructed engines handed to the server.
type Deps struct {
	State      *state.Manager
	Registry   *registry.Engine
	Agreements *agreement.Engine
	Ledgers    *ledger.Engine
	Governance *governance.Engine
	Logger     *slog.Logger
}

// NewServer wires the engines into an HTTP server.
func NewServer(cfg config.Gateway, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		state:      deps.State,
		registry:   deps.Registry,
		agreements: deps.Agreements,
		ledgers:    deps.Ledgers,
		gov:        deps.Governance,
		logger:     logger,
		metrics:    metrics.Engine(),
		limiter:    newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.limiter.middleware)
	r.Use(limitBody)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Route("/assets", func(ar chi.Router) {
			ar.Post("/", s.handleRegisterAsset)
			ar.Get("/{id}", s.handleGetAsset)
			ar.Post("/{id}/verify", s.handleVerifyAsset)
		})
		v1.Route("/agreements", func(gr chi.Router) {
			gr.Post("/", s.handleCreateAgreement)
			gr.Get("/{id}", s.handleGetAgreement)
			gr.Get("/{id}/payment", s.handleMonthlyPayment)
			gr.Get("/{id}/outstanding", s.handleOutstanding)
			gr.Post("/{id}/repayments", s.handleRepayment)
			gr.Post("/{id}/payer", s.handleSetPayer)
			gr.Post("/{id}/missed", s.handleRecordMissed)
			gr.Post("/{id}/default-check", s.handleCheckDefault)
			gr.Get("/{id}/ledger", s.handleGetLedger)
			gr.Post("/{id}/transfers", s.handleTransfer)
			gr.Post("/{id}/approvals", s.handleApprove)
			gr.Post("/{id}/delegated-transfers", s.handleTransferFrom)
		})
		v1.Route("/governance/proposals", func(pr chi.Router) {
			pr.Post("/", s.handlePropose)
			pr.Get("/{id}", s.handleGetProposal)
			pr.Post("/{id}/votes", s.handleCastVote)
			pr.Post("/{id}/execute", s.handleExecute)
		})
		v1.Route("/accounts", func(ac chi.Router) {
			ac.Get("/{addr}", s.handleGetAccount)
			ac.Post("/{addr}/credits", s.handleCreditAccount)
		})
	})

	return r
}
