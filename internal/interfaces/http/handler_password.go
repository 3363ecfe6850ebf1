package httpinterface

import (
	"net/http"

	"github.com/tdex-network/walletdb/internal/core/application/unlocker"
)

type passwordHandler struct {
	unlocker *unlocker.Service
}

type passwordRequest struct {
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *passwordHandler) status(w http.ResponseWriter, r *http.Request) {
	status, err := h.unlocker.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, status)
}

func (h *passwordHandler) init(w http.ResponseWriter, r *http.Request) {
	req := passwordRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.unlocker.InitPassword(r.Context(), req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *passwordHandler) unlock(w http.ResponseWriter, r *http.Request) {
	req := passwordRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.unlocker.Unlock(r.Context(), req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *passwordHandler) lock(w http.ResponseWriter, _ *http.Request) {
	h.unlocker.Lock()
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *passwordHandler) change(w http.ResponseWriter, r *http.Request) {
	req := changePasswordRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.unlocker.ChangePassword(
		r.Context(), req.OldPassword, req.NewPassword,
	); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
