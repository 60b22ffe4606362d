package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/bookkeeping-service/internal/ledger"
	"github.com/Dan9191/bookkeeping-service/internal/models"
	"github.com/Dan9191/bookkeeping-service/internal/money"
	"github.com/Dan9191/bookkeeping-service/internal/service"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Amount accepts a JSON number or string and keeps it as an exact decimal.
// It is not rounded here; the ledger rounds after checking the sign.
type Amount struct {
	decimal.Decimal
	set bool
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := string(bytes.TrimSpace(b))
	if raw == "null" {
		return nil
	}
	if len(raw) >= 2 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = s
	}
	d, err := money.ParseExact(raw)
	if err != nil {
		return err
	}
	a.Decimal, a.set = d, true
	return nil
}

type transferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        Amount `json:"amount"`
	Category      string `json:"category"`
	Note          string `json:"note"`
}

type adjustRequest struct {
	NewBalance Amount `json:"new_balance"`
	Note       string `json:"note"`
}

type createAccountRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Icon     string `json:"icon"`
	Color    string `json:"color"`
	Balance  Amount `json:"balance"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	AccountID string `json:"account_id,omitempty"`
	Value     string `json:"value,omitempty"`
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Login exchanges the owner password for a token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	tok, err := h.svc.Login(req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

// ListAccounts returns all accounts and their total
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.ListAccounts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	total, err := h.svc.TotalBalance(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts, "total": total})
}

// GetAccount returns one account
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.GetAccount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// CreateAccount handles account creation
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.svc.CreateAccount(r.Context(), models.NewAccount{
		Name:     req.Name,
		Category: req.Category,
		Icon:     req.Icon,
		Color:    req.Color,
		Balance:  req.Balance.Decimal,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// Transfer moves money between two accounts
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Transfer(r.Context(), ledger.TransferRequest{
		FromID:   req.FromAccountID,
		ToID:     req.ToAccountID,
		Amount:   req.Amount.Decimal,
		Category: req.Category,
		Note:     req.Note,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AdjustBalance sets the balance of the account in the path
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !req.NewBalance.set {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "new_balance is required"})
		return
	}
	res, err := h.svc.AdjustBalance(r.Context(), ledger.AdjustRequest{
		AccountID:  mux.Vars(r)["id"],
		NewBalance: req.NewBalance.Decimal,
		Note:       req.Note,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// History returns the audit log
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.History(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// VerifyHistory lists entries whose signatures do not match
func (h *Handler) VerifyHistory(w http.ResponseWriter, r *http.Request) {
	invalid, err := h.svc.VerifyHistory(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": len(invalid) == 0, "invalid_entries": invalid})
}

// ExportStatement streams an XML statement
func (h *Handler) ExportStatement(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.ExportStatement(r.Context(), &buf); err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="statement.xml"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var lerr *ledger.Error
	if errors.As(err, &lerr) {
		resp := errorResponse{Error: lerr.Error(), Kind: lerr.Kind.String(), AccountID: lerr.AccountID}
		if v := lerr.Value; v != nil {
			resp.Value = money.Format(*v)
			if !money.Round(*v).Equal(*v) {
				resp.Value = v.String()
			}
		}
		status := http.StatusBadRequest
		switch lerr.Kind {
		case ledger.AccountNotFound:
			status = http.StatusNotFound
		case ledger.PersistenceFailure:
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, resp)
		return
	}

	switch {
	case errors.Is(err, service.ErrEmptyName), errors.Is(err, service.ErrNegativeOpening), errors.Is(err, money.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrAuthDisabled), errors.Is(err, service.ErrSigningDisabled):
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: err.Error()})
	default:
		h.log.Errorf("Request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
