package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/partnerhub-platform/api/internal/config"
	"github.com/partnerhub-platform/api/internal/httpx"
	"github.com/partnerhub-platform/api/internal/objectstore"
	"github.com/partnerhub-platform/api/internal/store"
)

// FileEnqueuer hands storage events to the background import queue.
type FileEnqueuer interface {
	EnqueueFile(ctx context.Context, eventPayload []byte) error
}

// Presigner issues direct-upload URLs for the presign endpoint.
type Presigner interface {
	PresignPut(key, contentType string, expires time.Duration) (objectstore.PresignedUpload, error)
}

type Server struct {
	Config     config.Config
	Stores     *store.Stores
	Queue      FileEnqueuer
	Storage    Presigner
	Logger     *slog.Logger
	HTTPClient *http.Client
}

func NewServer(cfg config.Config, stores *store.Stores, queue FileEnqueuer, storage Presigner, logger *slog.Logger) *Server {
	return &Server{
		Config:     cfg,
		Stores:     stores,
		Queue:      queue,
		Storage:    storage,
		Logger:     logger,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
