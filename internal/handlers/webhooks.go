package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/partnerhub-platform/api/internal/httpx"
)

// snsMessage is the notification envelope the storage side delivers. The
// inner S3 event travels as a JSON string in Message.
type snsMessage struct {
	Type         string `json:"Type"`
	SubscribeURL string `json:"SubscribeURL"`
	Message      string `json:"Message"`
}

// PostStorageWebhooks receives upload notifications. Subscription
// handshakes are confirmed by fetching the SubscribeURL; notifications are
// queued for the worker, so the webhook responds fast regardless of file
// size.
func (s *Server) PostStorageWebhooks(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Failed to read request body", nil)
		return
	}

	var msg snsMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Malformed JSON body", nil)
		return
	}

	switch msg.Type {
	case "SubscriptionConfirmation":
		if err := s.confirmSubscription(r, msg.SubscribeURL); err != nil {
			s.Logger.ErrorContext(r.Context(), "subscription confirmation failed", "error", err)
			httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to confirm subscription", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
	case "Notification":
		if err := s.Queue.EnqueueFile(r.Context(), []byte(msg.Message)); err != nil {
			s.Logger.ErrorContext(r.Context(), "enqueue import job failed", "error", err)
			httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to queue import", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "queued"})
	default:
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "Unsupported message type", nil)
	}
}

func (s *Server) confirmSubscription(r *http.Request, subscribeURL string) error {
	parsed, err := url.Parse(subscribeURL)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &url.Error{Op: "confirm", URL: subscribeURL, Err: http.ErrSchemeMismatch}
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, parsed.String(), nil)
	if err != nil {
		return err
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
