package httpinterface

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tdex-network/walletdb/internal/core/application/addressindex"
	"github.com/tdex-network/walletdb/internal/core/application/hierarchy"
	"github.com/tdex-network/walletdb/internal/core/domain"
)

type walletHandler struct {
	hierarchy *hierarchy.Service
	indexer   *addressindex.Indexer
}

type createHDWalletRequest struct {
	Name            string             `json:"name"`
	Avatar          *domain.AvatarInfo `json:"avatar,omitempty"`
	Backuped        bool               `json:"backuped"`
	Seed            domain.HDSeed      `json:"seed"`
	Hash            string             `json:"hash"`
	Xfp             string             `json:"xfp"`
	FirstEvmAddress string             `json:"firstEvmAddress"`
}

type createWalletResponse struct {
	Wallet           domain.Wallet          `json:"wallet"`
	IndexedAccount   *domain.IndexedAccount `json:"indexedAccount,omitempty"`
	IsOverrideWallet bool                   `json:"isOverrideWallet"`
}

type renameRequest struct {
	Name   string             `json:"name"`
	Avatar *domain.AvatarInfo `json:"avatar,omitempty"`
}

type orderRequest struct {
	Order float64 `json:"order"`
}

type renameAccountRequest struct {
	AccountID        string `json:"accountId"`
	IndexedAccountID string `json:"indexedAccountId"`
	Name             string `json:"name"`
}

func (h *walletHandler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := hierarchy.GetWalletsOpts{
		IgnoreEmptySingletonWalletAccounts: true,
		NestedHiddenWallets:                boolParam(query.Get("nested")),
		IncludingAccounts:                  boolParam(query.Get("accounts")),
		IgnoreNonBackedUpWallets:           boolParam(query.Get("backedUpOnly")),
	}
	wallets, err := h.hierarchy.GetWallets(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, wallets)
}

func (h *walletHandler) createHD(w http.ResponseWriter, r *http.Request) {
	req := createHDWalletRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	// the password comes from the unlocked session
	res, err := h.hierarchy.CreateHDWallet(r.Context(), hierarchy.CreateHDWalletParams{
		Name:            req.Name,
		Avatar:          req.Avatar,
		Backuped:        req.Backuped,
		Seed:            req.Seed,
		Hash:            req.Hash,
		Xfp:             req.Xfp,
		FirstEvmAddress: req.FirstEvmAddress,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createWalletResponse{
		Wallet:           res.Wallet,
		IndexedAccount:   res.IndexedAccount,
		IsOverrideWallet: res.IsOverrideWallet,
	})
}

func (h *walletHandler) get(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.hierarchy.GetWallet(r.Context(), chi.URLParam(r, "walletID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, wallet)
}

func (h *walletHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.hierarchy.RemoveWallet(r.Context(), hierarchy.RemoveWalletParams{
		WalletID:         chi.URLParam(r, "walletID"),
		IsRemoveToMocked: boolParam(r.URL.Query().Get("toMocked")),
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *walletHandler) rename(w http.ResponseWriter, r *http.Request) {
	req := renameRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	wallet, err := h.hierarchy.SetWalletNameAndAvatar(r.Context(), hierarchy.SetWalletNameAndAvatarParams{
		WalletID:             chi.URLParam(r, "walletID"),
		Name:                 req.Name,
		Avatar:               req.Avatar,
		ShouldCheckDuplicate: true,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, wallet)
}

func (h *walletHandler) reorder(w http.ResponseWriter, r *http.Request) {
	req := orderRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.hierarchy.UpdateWalletOrder(
		r.Context(), chi.URLParam(r, "walletID"), req.Order,
	); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *walletHandler) listIndexedAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.hierarchy.GetIndexedAccountsOfWallet(r.Context(), chi.URLParam(r, "walletID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, list)
}

func (h *walletHandler) addNextIndexedAccount(w http.ResponseWriter, r *http.Request) {
	ia, err := h.hierarchy.AddHDNextIndexedAccount(r.Context(), chi.URLParam(r, "walletID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ia)
}

func (h *walletHandler) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.hierarchy.GetAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, account)
}

func (h *walletHandler) removeAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.hierarchy.RemoveAccount(r.Context(), chi.URLParam(r, "accountID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *walletHandler) renameAccount(w http.ResponseWriter, r *http.Request) {
	req := renameAccountRequest{}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.hierarchy.SetAccountName(r.Context(), hierarchy.SetAccountNameParams{
		AccountID:            req.AccountID,
		IndexedAccountID:     req.IndexedAccountID,
		Name:                 req.Name,
		ShouldCheckDuplicate: true,
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *walletHandler) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.hierarchy.GetAllDevices(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, devices)
}

func (h *walletHandler) lookupAddress(w http.ResponseWriter, r *http.Request) {
	found, err := h.indexer.Lookup(
		r.Context(), chi.URLParam(r, "networkID"), chi.URLParam(r, "address"),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	if found == nil {
		writeError(w, domain.NewRecordNotFoundError(domain.StoreAddress, chi.URLParam(r, "address")))
		return
	}
	writeOK(w, found)
}

func boolParam(value string) bool {
	b, _ := strconv.ParseBool(value)
	return b
}
