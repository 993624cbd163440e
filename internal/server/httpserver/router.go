package httpserver

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/yndnr/waypoint-go/internal/server/httpserver/handler"
	"github.com/yndnr/waypoint-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler serves the API routes.
	Handler *handler.Handler

	// Metrics, when set, serves /metrics and records request metrics.
	Metrics *metric.Registry

	Logger *slog.Logger

	// RateLimit is the per-client request rate. Zero disables limiting.
	RateLimit float64

	// RateBurst is the per-client burst. Zero uses the rate, rounded up.
	RateBurst int

	// AdminAllowList restricts /admin/ routes to these IPs or CIDRs. Empty means no restriction.
	AdminAllowList []string

	// AccessLog logs every request.
	AccessLog bool
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Order: Recover -> RequestID -> Trace -> AccessLog -> Metrics -> RateLimit -> handler
	common := []Middleware{Recover(logger), RequestID(), Trace()}
	if cfg.AccessLog {
		common = append(common, AccessLog(logger))
	}
	if cfg.Metrics != nil {
		common = append(common, Metrics(cfg.Metrics))
	}

	api := []Middleware{}
	if cfg.RateLimit > 0 {
		api = append(api, RateLimit(cfg.RateLimit, cfg.RateBurst))
	}

	mux := http.NewServeMux()

	mux.Handle("GET /health", Chain(cfg.Handler, common...))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), common...))
	}

	apiHandler := Chain(cfg.Handler, slices.Concat(common, api)...)
	mux.Handle("/sessions", apiHandler)
	mux.Handle("/sessions/", apiHandler)
	mux.Handle("/characters/", apiHandler)

	admin := slices.Concat(common, api)
	if len(cfg.AdminAllowList) > 0 {
		admin = append(admin, NetworkACL(&NetworkACLConfig{
			AllowList: cfg.AdminAllowList,
			Logger:    logger,
		}))
	}
	mux.Handle("/admin/", Chain(cfg.Handler, admin...))

	return mux
}
