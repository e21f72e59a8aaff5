package billing

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/remindhq/remind/internal/api"
)

// maxWebhookBody bounds what we will read from Paddle.
const maxWebhookBody = 1 << 20

// Handler exposes the Paddle webhook endpoint.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type webhookResponse struct {
	OK    bool   `json:"ok"`
	Token string `json:"token,omitempty"`
}

// PaddleWebhook handles POST /webhooks/paddle. Unhandled event types get a
// 200 so Paddle stops retrying them.
func (h *Handler) PaddleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if !h.svc.VerifySignature(body, r.Header.Get("X-Paddle-Signature")) {
		api.JSONErrorMessage(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	issued, err := h.svc.HandleEvent(r.Context(), body)
	if err != nil {
		slog.Error("paddle webhook", "error", err)
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	resp := webhookResponse{OK: true}
	if issued != nil {
		resp.Token = issued.Token
	}
	api.JSON(w, http.StatusOK, resp)
}
