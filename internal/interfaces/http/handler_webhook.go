package httpinterface

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/infrastructure/pubsub"
)

type webhookHandler struct {
	bus *pubsub.Service
}

type webhookRequest struct {
	Event    string `json:"event"`
	Endpoint string `json:"endpoint"`
	Secret   string `json:"secret"`
}

func (h *webhookHandler) list(w http.ResponseWriter, r *http.Request) {
	writeOK(w, h.bus.ListWebhooks(r.URL.Query().Get("event")))
}

func (h *webhookHandler) add(w http.ResponseWriter, r *http.Request) {
	req := webhookRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := h.bus.AddWebhook(req.Event, req.Endpoint, req.Secret)
	if err != nil {
		writeError(w, domain.WrapGenericLocalError(err, "add webhook"))
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{id})
}

func (h *webhookHandler) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "webhookID")
	if err := h.bus.RemoveWebhook(id); err != nil {
		writeError(w, domain.NewRecordNotFoundError("Webhook", id))
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
