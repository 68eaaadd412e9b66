package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/bankportal/backend/internal/config"
	"github.com/bankportal/backend/internal/services"
	"github.com/bankportal/backend/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redismock/v8"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	codeX        = "FR1420041000000000001"
	codeY        = "FR1420041000000000002"
	codeExternal = "XX000000000000000"
)

type testAPI struct {
	router http.Handler
	redis  redismock.ClientMock
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st := store.NewMemoryStore()
	cfg := config.DefaultLedgerConfig()
	ledger := services.NewLedgerService(st, services.NewFeeSchedule(cfg), nil, nil, nil)
	iso := services.NewISO20022Service(cfg)
	transfers := services.NewTransferService(services.TransferDeps{Store: st, Ledger: ledger, ISO: iso})
	rdb, mock := redismock.NewClientMock()

	r := chi.NewRouter()
	Routes{
		Accounts:     NewAccountHandler(services.NewAccountService(st, ledger, nil, nil), nil),
		Transactions: NewTransactionHandler(ledger, nil),
		Transfers:    NewTransferHandler(transfers, iso, nil),
		QR:           NewQRHandler(services.NewQRService(st, rdb), transfers, nil),
		Integrity:    NewIntegrityHandler(services.NewIntegrityService(st, nil, nil), &stubEnqueuer{}, nil),
	}.Register(r)
	return &testAPI{router: r, redis: mock}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (a *testAPI) open(t *testing.T, code, balance string) accountView {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/accounts", `{"code":"`+code+`","type":"CHECKING","opening_balance":"`+balance+`"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[accountView](t, rr)
}

func TestAccountEndpoints(t *testing.T) {
	api := newTestAPI(t)

	account := api.open(t, codeX, "1500")
	assert.Equal(t, "1500.00", account.Balance)
	assert.True(t, account.IsActive)

	rr := api.do(t, http.MethodPost, "/accounts", `{"code":"`+codeX+`","type":"CHECKING"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(t, http.MethodPost, "/accounts", `{"code":"`+codeY+`","type":"CHECKING","surprise":true}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodGet, "/accounts/code/"+codeX, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, account.ID, decode[accountView](t, rr).ID)

	rr = api.do(t, http.MethodGet, "/accounts/1/balance", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1500.00", decode[map[string]any](t, rr)["balance"])

	rr = api.do(t, http.MethodGet, "/accounts/999", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodGet, "/accounts/abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodPatch, "/accounts/1", `{"display_name":"Main"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Main", decode[accountView](t, rr).DisplayName)

	rr = api.do(t, http.MethodDelete, "/accounts/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decode[map[string]any](t, rr)["deleted"])
}

func TestTransactionEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.open(t, codeX, "100")

	rr := api.do(t, http.MethodPost, "/accounts/1/transactions", `{"amount":"30","kind":"debit","description":"ATM"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	debit := decode[transactionView](t, rr)
	assert.Equal(t, "30.00", debit.Amount)
	assert.Equal(t, "70.00", debit.BalanceAfter)
	assert.Equal(t, "0.00", debit.Fee)

	rr = api.do(t, http.MethodPost, "/accounts/1/transactions", `{"amount":"500","kind":"DEBIT"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = api.do(t, http.MethodPost, "/accounts/1/transactions", `{"amount":"5","kind":"FEE"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodGet, "/accounts/1/transactions?limit=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]transactionView](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, debit.Reference, list[0].Reference)

	rr = api.do(t, http.MethodGet, "/accounts/1/transactions?from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodGet, "/accounts/1/transactions?from=2030-01-02&to=2030-01-01", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodGet, "/transactions/reference/"+debit.Reference, "")
	require.Equal(t, http.StatusOK, rr.Code)

	path := "/transactions/" + itoa(debit.ID)
	rr = api.do(t, http.MethodPost, path+"/reverse", `{"reason":"card skimmed"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	reversal := decode[transactionView](t, rr)
	assert.Equal(t, "CREDIT", reversal.Kind)
	assert.Equal(t, "100.00", reversal.BalanceAfter)
	assert.Equal(t, "Reversal of transaction "+debit.Reference+": card skimmed", reversal.Description)

	rr = api.do(t, http.MethodPost, path+"/reverse", `{"reason":"again"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(t, http.MethodPost, path+"/reverse", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = api.do(t, http.MethodGet, "/transactions/999", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTransferEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.open(t, codeX, "1500")
	api.open(t, codeY, "0")

	rr := api.do(t, http.MethodPost, "/transfers", `{"amount":"1000","source_code":"`+codeX+`","destination_code":"`+codeY+`","description":"rent"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	local := decode[transferView](t, rr)
	assert.Equal(t, "COMPLETED", local.Status)
	assert.Equal(t, "1000.00", local.Amount)
	assert.Equal(t, "5.00", local.Fee)
	assert.False(t, local.External)

	rr = api.do(t, http.MethodGet, "/transfers/"+itoa(local.ID)+"/transactions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]transactionView](t, rr), 3)

	rr = api.do(t, http.MethodGet, "/transfers/"+itoa(local.ID)+"/pacs008", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(t, http.MethodPost, "/transfers/"+itoa(local.ID)+"/cancel", `{"reason":"late"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(t, http.MethodDelete, "/transfers/"+itoa(local.ID), "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = api.do(t, http.MethodPost, "/transfers", `{"amount":"0.001","source_code":"`+codeX+`","destination_code":"`+codeExternal+`"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodPost, "/transfers", `{"amount":"400","source_code":"`+codeX+`","destination_code":"`+codeExternal+`"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	external := decode[transferView](t, rr)
	assert.True(t, external.External)
	assert.Nil(t, external.DestinationAccountID)

	rr = api.do(t, http.MethodGet, "/transfers/"+itoa(external.ID)+"/pacs008", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/xml", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), external.Reference)

	rr = api.do(t, http.MethodGet, "/transfers/"+itoa(external.ID)+"/pacs002", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ACSC")

	rr = api.do(t, http.MethodPost, "/transfers", `{"amount":"1000","source_code":"`+codeX+`","destination_code":"`+codeY+`"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	failed := decode[errorResponse](t, rr)
	assert.NotEmpty(t, failed.Reference)

	rr = api.do(t, http.MethodGet, "/transfers/reference/"+failed.Reference, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "FAILED", decode[transferView](t, rr).Status)

	rr = api.do(t, http.MethodPost, "/transfers", `{"amount":"0","source_code":"`+codeX+`","destination_code":"`+codeX+`"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	invalid := decode[errorResponse](t, rr)
	assert.Contains(t, invalid.Details, "amount")
	assert.Contains(t, invalid.Details, "destination_code")

	rr = api.do(t, http.MethodPost, "/transfers", `{"amount":"1","source_code":"DE00000000000000000","destination_code":"`+codeX+`"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodGet, "/transfers?status=completed", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]transferView](t, rr), 2)

	rr = api.do(t, http.MethodGet, "/transfers?status=lost", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// The completed local transfer and the failed one both name account 2.
	rr = api.do(t, http.MethodGet, "/accounts/2/transfers", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]transferView](t, rr), 2)

	rr = api.do(t, http.MethodGet, "/ledger/integrity", "")
	require.Equal(t, http.StatusOK, rr.Code)
	report := decode[services.IntegrityReport](t, rr)
	assert.Equal(t, 2, report.Accounts)
	assert.Empty(t, report.Mismatches)
}

func TestQREndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.open(t, codeX, "100")
	api.open(t, codeY, "0")

	payload := `{"account_code":"` + codeY + `","amount":"12.5","description":"coffee","created_at":1,"nonce":"n"}`
	api.redis.ExpectGet("qr:token").SetVal(payload)
	api.redis.ExpectDel("qr:token").SetVal(1)

	rr := api.do(t, http.MethodPost, "/qr/process", `{"qr_code":"token","source_code":"`+codeX+`"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	transfer := decode[transferView](t, rr)
	assert.Equal(t, "12.50", transfer.Amount)
	assert.Equal(t, codeY, transfer.DestinationCode)

	api.redis.ExpectGet("qr:token").RedisNil()
	rr = api.do(t, http.MethodPost, "/qr/process", `{"qr_code":"token","source_code":"`+codeX+`"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodPost, "/qr/generate", `{"account_code":"nope","amount":"5"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.NoError(t, api.redis.ExpectationsWereMet())
}

func TestStatusFor(t *testing.T) {
	tests := map[error]int{
		services.ErrValidation:           http.StatusBadRequest,
		services.ErrSourceInactive:       http.StatusBadRequest,
		services.ErrNotFound:             http.StatusNotFound,
		services.ErrSourceNotFound:       http.StatusNotFound,
		services.ErrInsufficientFunds:    http.StatusUnprocessableEntity,
		services.ErrDuplicateCode:        http.StatusConflict,
		services.ErrInvalidState:         http.StatusConflict,
		services.ErrNotReversible:        http.StatusUnprocessableEntity,
		services.ErrUnsupportedOperation: http.StatusMethodNotAllowed,
		assert.AnError:                   http.StatusInternalServerError,
	}
	for err, want := range tests {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}

func TestDecodeJSONRejectsTrailingData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}{"a":2}`))
	rr := httptest.NewRecorder()
	var dst struct {
		A int `json:"a"`
	}
	assert.False(t, decodeJSON(rr, req, &dst))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type stubEnqueuer struct {
	accountIDs []int64
}

func (s *stubEnqueuer) EnqueueIntegrityCheck(_ context.Context, accountID int64) (*asynq.TaskInfo, error) {
	s.accountIDs = append(s.accountIDs, accountID)
	return &asynq.TaskInfo{ID: "task-1", Queue: "ledger"}, nil
}

func TestIntegrityEnqueue(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPost, "/ledger/integrity/jobs?account_id=3", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "task-1", decode[map[string]string](t, rr)["task_id"])

	rr = api.do(t, http.MethodPost, "/ledger/integrity/jobs?account_id=x", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	r := chi.NewRouter()
	r.Post("/jobs", NewIntegrityHandler(nil, nil, nil).Enqueue)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
