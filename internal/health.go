package internal

import (
	"context"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/exercisetracker/internal/telemetry/tracing"
	"github.com/2beens/exercisetracker/pkg"
)

const (
	healthPingTimeout = 3 * time.Second

	healthOK   = "ok"
	healthDown = "down"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Redis  string `json:"redis,omitempty"`
}

type healthHandler struct {
	store       pinger
	redisClient *redis.Client
}

func newHealthHandler(store pinger, redisClient *redis.Client) *healthHandler {
	return &healthHandler{
		store:       store,
		redisClient: redisClient,
	}
}

// ServeHTTP answers 200 when the store (and redis, if configured) respond to a ping, 503 otherwise.
func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.health")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	resp := healthResponse{
		Status: healthOK,
		Store:  healthOK,
	}

	if err := h.store.Ping(ctx); err != nil {
		log.Errorf("health: store ping: %s", err)
		resp.Store = healthDown
		resp.Status = healthDown
	}

	if h.redisClient != nil {
		resp.Redis = healthOK
		if err := h.redisClient.Ping(ctx).Err(); err != nil {
			log.Errorf("health: redis ping: %s", err)
			resp.Redis = healthDown
			resp.Status = healthDown
		}
	}

	statusCode := http.StatusOK
	if resp.Status != healthOK {
		statusCode = http.StatusServiceUnavailable
	}
	pkg.WriteJSON(w, statusCode, resp)
}
