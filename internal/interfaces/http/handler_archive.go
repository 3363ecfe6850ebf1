package httpinterface

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tdex-network/walletdb/internal/core/application/archive"
	"github.com/tdex-network/walletdb/internal/core/domain"
)

type archiveHandler struct {
	archive *archive.Service
}

type signedMessageRequest struct {
	Title     string `json:"title"`
	Favicon   string `json:"favicon"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Address   string `json:"address"`
	NetworkID string `json:"networkId"`
}

type signedTransactionRequest struct {
	Title     string          `json:"title"`
	Hash      string          `json:"hash"`
	Address   string          `json:"address"`
	NetworkID string          `json:"networkId"`
	Data      json.RawMessage `json:"data"`
}

type connectedSiteRequest struct {
	Title string          `json:"title"`
	URL   string          `json:"url"`
	Items json.RawMessage `json:"items"`
}

func (h *archiveHandler) listSignedMessages(w http.ResponseWriter, r *http.Request) {
	list, err := h.archive.GetSignedMessages(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, list)
}

func (h *archiveHandler) addSignedMessage(w http.ResponseWriter, r *http.Request) {
	req := signedMessageRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	msg, err := h.archive.AddSignedMessage(r.Context(), archive.SignedMessageParams(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *archiveHandler) clearSignedMessages(w http.ResponseWriter, r *http.Request) {
	count, err := h.archive.RemoveAllSignedMessages(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, countResponse{count})
}

func (h *archiveHandler) listSignedTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := h.archive.GetSignedTransactions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, list)
}

func (h *archiveHandler) addSignedTransaction(w http.ResponseWriter, r *http.Request) {
	req := signedTransactionRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	signedTx, err := h.archive.AddSignedTransaction(r.Context(), archive.SignedTransactionParams{
		Title:     req.Title,
		Hash:      req.Hash,
		Address:   req.Address,
		NetworkID: req.NetworkID,
		Data:      req.Data,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, signedTx)
}

func (h *archiveHandler) clearSignedTransactions(w http.ResponseWriter, r *http.Request) {
	count, err := h.archive.RemoveAllSignedTransactions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, countResponse{count})
}

func (h *archiveHandler) listConnectedSites(w http.ResponseWriter, r *http.Request) {
	list, err := h.archive.GetConnectedSites(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, list)
}

func (h *archiveHandler) addConnectedSite(w http.ResponseWriter, r *http.Request) {
	req := connectedSiteRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.URL == "" {
		writeError(w, missingParam("url"))
		return
	}
	site, err := h.archive.AddConnectedSite(r.Context(), archive.ConnectedSiteParams{
		Title: req.Title,
		URL:   req.URL,
		Items: req.Items,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, site)
}

func (h *archiveHandler) clearConnectedSites(w http.ResponseWriter, r *http.Request) {
	count, err := h.archive.RemoveAllConnectedSites(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, countResponse{count})
}

func (h *archiveHandler) listHomeScreens(w http.ResponseWriter, r *http.Request) {
	list, err := h.archive.GetHardwareHomeScreens(r.Context(), chi.URLParam(r, "deviceID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, list)
}

func (h *archiveHandler) addHomeScreen(w http.ResponseWriter, r *http.Request) {
	screen := domain.HardwareHomeScreen{}
	if err := decodeBody(r, &screen); err != nil {
		writeError(w, err)
		return
	}
	id, err := h.archive.AddHardwareHomeScreen(r.Context(), screen)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{id})
}

func (h *archiveHandler) deleteHomeScreen(w http.ResponseWriter, r *http.Request) {
	if err := h.archive.DeleteHardwareHomeScreen(
		r.Context(), chi.URLParam(r, "homeScreenID"),
	); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
