package handler

import (
	"net/http"
	"time"

	bothandler "github.com/dmoreira/financas-familia-go/internal/bot/handler"
	botservice "github.com/dmoreira/financas-familia-go/internal/bot/service"
	"github.com/dmoreira/financas-familia-go/internal/infra/observability"
	"github.com/dmoreira/financas-familia-go/internal/port"
	"github.com/dmoreira/financas-familia-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// The bot service may be nil when no Telegram token is configured;
// the webhook route then answers 503.
func NewRouter(
	store port.FinanceStore,
	statements *service.StatementService,
	settlements *service.SettlementService,
	autopay *service.AutoPayService,
	bot *botservice.BotService,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. 💳 Faturas (statements)
		// GET /v1/users/{userId}/cards/{cardId}/statement?month=YYYY-MM
		// GET /v1/users/{userId}/statements/pending
		// =============================================
		r.Get("/users/{userId}/cards/{cardId}/statement", getStatementHandler(statements, logger))
		r.Get("/users/{userId}/statements/pending", listPendingHandler(statements, logger))

		// =============================================
		// 2. 💸 Pagamento de fatura
		// POST /v1/users/{userId}/cards/{cardId}/settle
		// =============================================
		r.Post("/users/{userId}/cards/{cardId}/settle", settleHandler(settlements, logger))

		// =============================================
		// 3. ⚙️ Configuração por cartão
		// GET/PUT /v1/users/{userId}/cards/{cardId}/settings
		// =============================================
		r.Get("/users/{userId}/cards/{cardId}/settings", getSettingsHandler(autopay, logger))
		r.Put("/users/{userId}/cards/{cardId}/settings", updateSettingsHandler(autopay, logger))

		// =============================================
		// 4. 🤖 Bot do Telegram
		// POST /v1/bot/webhook
		// =============================================
		if bot != nil {
			r.Post("/bot/webhook", bothandler.WebhookHandler(bot, logger))
		} else {
			r.Post("/bot/webhook", func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "bot unavailable: Telegram not configured")
			})
		}
	})

	return r
}

// ============================================================
// Probes
// ============================================================

type serviceHealth struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
}

func healthzHandler(store port.FinanceStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		services := []serviceHealth{
			{Name: "financas-api", Status: "healthy"},
		}

		start := time.Now()
		_, err := store.ListPrincipalCards(ctx, "health-check")
		latency := time.Since(start).Milliseconds()
		status := "healthy"
		if err != nil {
			status = "degraded"
			logger.Warn("health check store ping failed", zap.Error(err))
		}
		services = append(services, serviceHealth{
			Name: "supabase", Status: status, LatencyMs: latency,
		})

		overall := "healthy"
		for _, s := range services {
			if s.Status == "degraded" {
				overall = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":   overall,
			"services": services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
