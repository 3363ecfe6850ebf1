package httpinterface

import (
	"net/http"

	"github.com/tdex-network/walletdb/internal/core/application/cloudsync"
)

type syncHandler struct {
	engine *cloudsync.Engine
}

type syncRequest struct {
	IsFlush bool `json:"isFlush"`
}

type syncPasswordRequest struct {
	SyncPassword string `json:"syncPassword"`
	Password     string `json:"password"`
}

func (h *syncHandler) sync(w http.ResponseWriter, r *http.Request) {
	req := syncRequest{}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	report, err := h.engine.Sync(r.Context(), cloudsync.SyncOptions{
		IsFlush:          req.IsFlush,
		NoDebounceUpload: true,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, report)
}

func (h *syncHandler) setPassword(w http.ResponseWriter, r *http.Request) {
	req := syncPasswordRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.SyncPassword == "" {
		writeError(w, missingParam("sync password"))
		return
	}
	if err := h.engine.SetSyncPassword(r.Context(), req.SyncPassword, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *syncHandler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.GetAllLocalSyncItems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, items)
}

func (h *syncHandler) listBookmarks(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := h.engine.ListBrowserBookmarks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, bookmarks)
}
