package api

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/leadflow/internal/automation"
	"github.com/ignite/leadflow/internal/pkg/httputil"
	"github.com/ignite/leadflow/internal/pkg/logger"
	"github.com/ignite/leadflow/internal/ratelimit"
)

const serverVersion = "1.0.0"

// Handlers holds the request handlers and their collaborators. The engine is
// injected by the process entry point; handlers are stateless beyond it.
type Handlers struct {
	engine      *automation.Engine
	limiter     *ratelimit.Limiter // nil disables subscribe rate limiting
	environment string
	startTime   time.Time
	log         *logger.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(engine *automation.Engine, limiter *ratelimit.Limiter, environment string) *Handlers {
	return &Handlers{
		engine:      engine,
		limiter:     limiter,
		environment: environment,
		startTime:   time.Now(),
		log:         logger.With("api"),
	}
}

type subscribeRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type subscribeResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	SubscriberID string `json:"subscriberId"`
	NextStep     string `json:"nextStep"`
}

// HandleSubscribe enrolls a new subscriber and kicks off the drip sequence.
//
//	POST /subscribe
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil {
		ok, err := h.limiter.Allow(r.Context(), clientIP(r))
		if err != nil {
			// fail open, but record that the limiter is unhealthy
			h.log.Warn("rate limiter unavailable", "error", err)
		}
		if !ok {
			httputil.Error(w, http.StatusTooManyRequests, "too many signups from this address, try again later")
			return
		}
	}

	var req subscribeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	sub, err := h.engine.Subscribe(r.Context(), req.Email, req.Name)
	if err != nil {
		var verr *automation.ValidationError
		if errors.As(err, &verr) {
			httputil.BadRequest(w, verr.Message, verr.Field)
			return
		}
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, subscribeResponse{
		Success:      true,
		Message:      "You're in! Check your inbox for the guide.",
		SubscriberID: sub.ID,
		NextStep:     "Four follow-up emails arrive over the next four days.",
	})
}

// HandleUnsubscribe marks a subscriber unsubscribed; queued messages for
// them are skipped from then on.
//
//	POST /unsubscribe/{id}
func (h *Handlers) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.engine.Unsubscribe(r.Context(), id); err != nil {
		if errors.Is(err, automation.ErrNotFound) {
			httputil.NotFound(w, "unknown subscriber")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, map[string]any{"success": true, "message": "You won't hear from us again."})
}

// HandleHealth reports engine health and queue aggregates.
//
//	GET /health
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		logger.Error("health check failed", "error", err)
		httputil.JSON(w, http.StatusInternalServerError, map[string]any{
			"status": "error",
			"error":  "stats unavailable",
		})
		return
	}

	httputil.OK(w, map[string]any{
		"status":    "healthy",
		"stats":     stats,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleStats reports automation and server stats.
//
//	GET /stats
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, map[string]any{
		"automation": stats,
		"server": map[string]any{
			"version":     serverVersion,
			"environment": h.environment,
			"uptime":      time.Since(h.startTime).Round(time.Second).String(),
		},
	})
}

func clientIP(r *http.Request) string {
	// middleware.RealIP has already folded X-Forwarded-For into RemoteAddr
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
