package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dan9191/bookkeeping-service/internal/config"
	"github.com/Dan9191/bookkeeping-service/internal/ledger"
	"github.com/Dan9191/bookkeeping-service/internal/models"
	"github.com/Dan9191/bookkeeping-service/internal/money"
	"github.com/Dan9191/bookkeeping-service/internal/service"
	"github.com/Dan9191/bookkeeping-service/internal/storage"
)

func newServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := storage.NewMemoryStore()
	engine := ledger.NewEngine(store, store, logger, ledger.WithSigningSecret(cfg.HMACSecret))
	svc := service.NewService(store, engine, nil, logger, cfg)
	ts := httptest.NewServer(NewRouter(NewHandler(svc, logger), cfg))
	t.Cleanup(ts.Close)
	return ts
}

// doJSON sends body as JSON, checks the status code and decodes into out when non-nil
func doJSON(t *testing.T, method, url, token string, body any, wantCode int, out any) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	require.Equal(t, wantCode, resp.StatusCode, "body: %s", raw)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out))
	}
}

func TestHTTPFlow(t *testing.T) {
	ts := newServer(t, &config.Config{HMACSecret: "hmac"})

	var a, b models.Account
	doJSON(t, "POST", ts.URL+"/accounts", "", map[string]any{"name": "Bank card", "category": "bank", "icon": "🏦", "balance": 1000}, http.StatusCreated, &a)
	doJSON(t, "POST", ts.URL+"/accounts", "", `{"name":"Alipay","category":"bank","balance":"500.00"}`, http.StatusCreated, &b)

	var tr models.TransferResult
	doJSON(t, "POST", ts.URL+"/transfers", "", `{"from_account_id":"`+a.ID+`","to_account_id":"`+b.ID+`","amount":123.45,"note":"test"}`, http.StatusOK, &tr)
	assert.True(t, tr.Success)
	assert.Equal(t, "876.55", money.Format(tr.FromAccount.Balance))
	assert.Equal(t, "623.45", money.Format(tr.ToAccount.Balance))

	var adj models.AdjustResult
	doJSON(t, "POST", ts.URL+"/accounts/"+a.ID+"/adjust", "", map[string]any{"new_balance": 0.0, "note": "reset"}, http.StatusOK, &adj)
	assert.Equal(t, "876.55", money.Format(adj.OldBalance))
	assert.Equal(t, "-876.55", money.Format(adj.Difference))

	var got models.Account
	doJSON(t, "GET", ts.URL+"/accounts/"+a.ID, "", nil, http.StatusOK, &got)
	assert.Equal(t, "0.00", money.Format(got.Balance))

	var list struct {
		Accounts []models.Account `json:"accounts"`
		Total    string           `json:"total"`
	}
	doJSON(t, "GET", ts.URL+"/accounts", "", nil, http.StatusOK, &list)
	assert.Len(t, list.Accounts, 2)
	assert.Equal(t, "623.45", list.Total)

	var history []models.HistoryEntry
	doJSON(t, "GET", ts.URL+"/history", "", nil, http.StatusOK, &history)
	require.Len(t, history, 2)
	assert.Equal(t, models.EntryTransfer, history[0].Kind)
	assert.Equal(t, models.EntryAdjustment, history[1].Kind)

	var verify struct {
		Valid bool `json:"valid"`
	}
	doJSON(t, "GET", ts.URL+"/history/verify", "", nil, http.StatusOK, &verify)
	assert.True(t, verify.Valid)

	resp, err := http.Get(ts.URL + "/history/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "<statement"), string(body))
}

func TestHTTPErrors(t *testing.T) {
	ts := newServer(t, &config.Config{})

	var a, b models.Account
	doJSON(t, "POST", ts.URL+"/accounts", "", map[string]any{"name": "A", "balance": 10}, http.StatusCreated, &a)
	doJSON(t, "POST", ts.URL+"/accounts", "", map[string]any{"name": "B", "balance": 10}, http.StatusCreated, &b)

	var e errorResponse
	doJSON(t, "POST", ts.URL+"/transfers", "", map[string]any{"from_account_id": a.ID, "to_account_id": a.ID, "amount": 1}, http.StatusBadRequest, &e)
	assert.Equal(t, "SameAccount", e.Kind)

	doJSON(t, "POST", ts.URL+"/transfers", "", map[string]any{"from_account_id": a.ID, "to_account_id": b.ID, "amount": -5}, http.StatusBadRequest, &e)
	assert.Equal(t, "NegativeAmount", e.Kind)
	assert.Equal(t, "-5.00", e.Value)

	doJSON(t, "POST", ts.URL+"/transfers", "", map[string]any{"from_account_id": a.ID, "to_account_id": "ghost", "amount": 1}, http.StatusNotFound, &e)
	assert.Equal(t, "AccountNotFound", e.Kind)
	assert.Equal(t, "ghost", e.AccountID)

	doJSON(t, "POST", ts.URL+"/accounts/"+a.ID+"/adjust", "", map[string]any{"new_balance": "-1"}, http.StatusBadRequest, &e)
	assert.Equal(t, "NegativeBalance", e.Kind)

	doJSON(t, "POST", ts.URL+"/accounts/"+a.ID+"/adjust", "", `{"new_balance": -0.004}`, http.StatusBadRequest, &e)
	assert.Equal(t, "NegativeBalance", e.Kind)
	assert.Equal(t, "-0.004", e.Value)

	doJSON(t, "POST", ts.URL+"/transfers", "", `{"from_account_id":"`+a.ID+`","to_account_id":"`+b.ID+`","amount":"-0.004"}`, http.StatusBadRequest, &e)
	assert.Equal(t, "NegativeAmount", e.Kind)

	doJSON(t, "POST", ts.URL+"/transfers", "", `{"from_account_id":"`+a.ID+`","to_account_id":"`+b.ID+`","amount":0.004}`, http.StatusBadRequest, &e)
	assert.Equal(t, "ZeroAmount", e.Kind)

	doJSON(t, "POST", ts.URL+"/transfers", "", `{"from_account_id":"`+a.ID+`","to_account_id":"`+b.ID+`","amount":1e200000000}`, http.StatusBadRequest, nil)
	doJSON(t, "POST", ts.URL+"/accounts", "", `{"name":"Huge","balance":"1e18"}`, http.StatusBadRequest, nil)

	var got models.Account
	doJSON(t, "GET", ts.URL+"/accounts/"+a.ID, "", nil, http.StatusOK, &got)
	assert.Equal(t, "10.00", money.Format(got.Balance))

	doJSON(t, "POST", ts.URL+"/accounts/"+a.ID+"/adjust", "", map[string]any{"note": "no balance"}, http.StatusBadRequest, nil)
	doJSON(t, "POST", ts.URL+"/transfers", "", `{"amount": "12,5"}`, http.StatusBadRequest, nil)
	doJSON(t, "POST", ts.URL+"/transfers", "", `{bad json`, http.StatusBadRequest, nil)
	doJSON(t, "POST", ts.URL+"/accounts", "", map[string]any{"name": ""}, http.StatusBadRequest, nil)
	doJSON(t, "GET", ts.URL+"/accounts/ghost", "", nil, http.StatusNotFound, nil)
	doJSON(t, "POST", ts.URL+"/login", "", map[string]any{"password": "x"}, http.StatusNotImplemented, nil)
	doJSON(t, "GET", ts.URL+"/history/verify", "", nil, http.StatusNotImplemented, &e)
	assert.Equal(t, service.ErrSigningDisabled.Error(), e.Error)
}

func TestHTTPAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	ts := newServer(t, &config.Config{JWTSecret: "jwt", OwnerPasswordHash: string(hash)})

	doJSON(t, "GET", ts.URL+"/health", "", nil, http.StatusOK, nil)
	doJSON(t, "GET", ts.URL+"/accounts", "", nil, http.StatusUnauthorized, nil)
	doJSON(t, "POST", ts.URL+"/login", "", map[string]any{"password": "nope"}, http.StatusUnauthorized, nil)

	var tok models.Token
	doJSON(t, "POST", ts.URL+"/login", "", map[string]any{"password": "hunter2"}, http.StatusOK, &tok)
	require.NotEmpty(t, tok.AccessToken)
	doJSON(t, "GET", ts.URL+"/accounts", tok.AccessToken, nil, http.StatusOK, nil)
}
