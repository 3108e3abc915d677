package vendorrequests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

type passGuard struct{}

func (passGuard) RequireAny(...workflow.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}

func newTestRouter(f fixture) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var p *shared.Principal
			switch r.Header.Get("X-Test-User") {
			case "requester":
				p = requester
			case "compliance":
				p = compliance
			case "finance":
				p = finance
			case "admin":
				p = admin
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
		})
	})
	r.Route("/api/vendor-requests", NewHandler(nil, f.svc, passGuard{}, nil).MountRoutes)
	return r
}

func call(t *testing.T, h http.Handler, method, path, user, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Test-User", user)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func problemCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p.Code
}

func TestHandlerWorkflow(t *testing.T) {
	f := newFixture()
	h := newTestRouter(f)
	base := "/api/vendor-requests"

	rec := call(t, h, http.MethodPost, base+"/", "requester", `{"companyName":"Acme","requestingDepartmentId":3,"currency":"NGN"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created VendorRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	path := base + "/" + strconv.FormatInt(created.ID, 10)

	rec = call(t, h, http.MethodPost, path+"/compliance/approve", "compliance", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, CodeInvalidTransition, problemCode(t, rec))

	rec = call(t, h, http.MethodPost, path+"/submit", "requester", "", IdempotencyHeader, "submit-1")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = call(t, h, http.MethodPost, path+"/submit", "requester", "", IdempotencyHeader, "submit-1")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, httpx.CodeConflict, problemCode(t, rec))

	rec = call(t, h, http.MethodPost, path+"/compliance/reject", "compliance", `{"comment":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, CodeMissingReason, problemCode(t, rec))

	rec = call(t, h, http.MethodPost, path+"/compliance/approve", "compliance", `{"reviewerId":2,"comment":""}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodPost, path+"/finance/approve", "finance", `{"reviewerId":3}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, CodePreconditionFailed, problemCode(t, rec))

	rec = call(t, h, http.MethodPost, path+"/banking-details", "finance", `{"bankName":"GTB","accountHolderName":"Acme","accountNumber":"0001","currency":"EUR"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, httpx.CodeValidation, problemCode(t, rec))

	rec = call(t, h, http.MethodPost, path+"/banking-details", "finance", `{"bankName":"GTB","accountHolderName":"Acme","accountNumber":"0001"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got VendorRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "GTB", got.BankName)
	require.Equal(t, "NGN", got.Currency)

	rec = call(t, h, http.MethodPost, path+"/approve", "finance", `{"reviewerId":99}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h, http.MethodPost, path+"/approve", "finance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, workflow.StatusPendingAdminReview, got.Status)

	rec = call(t, h, http.MethodGet, base+"/pending", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []VendorRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 1)

	rec = call(t, h, http.MethodGet, path+"/approvals", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []shared.ApprovalLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs, 3)
}

func TestHandlerRejectsBadInput(t *testing.T) {
	f := newFixture()
	h := newTestRouter(f)
	base := "/api/vendor-requests"

	rec := call(t, h, http.MethodPost, base+"/", "requester", `{"companyName":"Acme","unknown":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodGet, base+"/abc", "requester", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodGet, base+"/77", "requester", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, h, http.MethodPost, base+"/1/legal/approve", "admin", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, h, http.MethodGet, base+"/?status=BOGUS", "requester", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodPost, base+"/", "", `{"companyName":"Acme","requestingDepartmentId":3}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerExport(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), requester, draft(), "")
	require.NoError(t, err)
	h := newTestRouter(f)

	rec := call(t, h, http.MethodGet, "/api/vendor-requests/export.xlsx?status=DRAFT", "requester", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "vendor-requests-")

	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Request Number", rows[0][0])
	require.Equal(t, "Acme Supplies", rows[1][2])
	require.Equal(t, "DRAFT", rows[1][1])
}

func TestHandlerUnknownDepartment(t *testing.T) {
	f := newFixture()
	f.svc.WithReferences(newMemoryReferences())
	h := newTestRouter(f)

	rec := call(t, h, http.MethodPost, "/api/vendor-requests/", "requester", `{"companyName":"Acme","requestingDepartmentId":424242}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, httpx.CodeNotFound, problemCode(t, rec))

	rec = call(t, h, http.MethodPost, "/api/vendor-requests/", "requester", `{"companyName":"Acme","requestingDepartmentId":7,"categoryId":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}
