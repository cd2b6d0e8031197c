package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/clock"
	"qrattend/internal/store/storetest"
	"qrattend/internal/token"
)

const (
	signingKey = "handler-test-key"
	jwtIssuer  = "qrattend-test"
)

type api struct {
	router  *gin.Engine
	clock   *clock.Manual
	teacher string
	student string
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := storetest.Open(t)
	storetest.SeedStudent(t, db, storetest.Student{ID: 42, NIS: "1042", Name: "Budi", Class: "XI-2", Department: "IPA"})

	clk := clock.NewManual(time.Date(2024, 3, 11, 8, 0, 0, 0, clock.Civil))
	tokens := token.NewRepository(db)
	ledger := attendance.NewRepository(db)
	h := New(
		token.NewIssuer(tokens, clk, 0, nil),
		tokens,
		attendance.NewRecorder(tokens, ledger, clk, nil, attendance.Options{}),
		ledger,
		map[string]HealthCheck{"db": db.Healthy},
	)

	r := gin.New()
	h.Register(r, signingKey, jwtIssuer)

	teacher, _, err := auth.Issue(auth.Identity{ID: 1, Role: auth.RoleTeacher}, jwtIssuer, signingKey, time.Hour)
	require.NoError(t, err)
	student, _, err := auth.Issue(auth.Identity{ID: 42, Role: auth.RoleStudent}, jwtIssuer, signingKey, time.Hour)
	require.NoError(t, err)

	return &api{router: r, clock: clk, teacher: teacher, student: student}
}

func (a *api) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *api) issue(t *testing.T, ttlSeconds int) tokenResponse {
	t.Helper()
	w := a.do(t, http.MethodPost, "/v1/tokens", a.teacher, map[string]int{"ttl_seconds": ttlSeconds})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var tok tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	return tok
}

func TestIssueToken(t *testing.T) {
	a := newAPI(t)

	tok := a.issue(t, 120)
	assert.NotEmpty(t, tok.Value)
	assert.Equal(t, 120, tok.ExpiresIn)
	assert.Equal(t, 120*time.Second, tok.ExpiresAt.Sub(tok.CreatedAt))

	w := a.do(t, http.MethodPost, "/v1/tokens", a.teacher, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var def tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &def))
	assert.Equal(t, 300, def.ExpiresIn)

	w = a.do(t, http.MethodPost, "/v1/tokens", a.student, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPost, "/v1/tokens", a.teacher, map[string]int{"ttl_seconds": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitAttendanceOutcomes(t *testing.T) {
	a := newAPI(t)
	tok := a.issue(t, 300)

	w := a.do(t, http.MethodPost, "/v1/attendance", a.student, submitRequest{Token: tok.Value})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "recorded", resp.Status)
	require.NotNil(t, resp.Record)
	assert.Equal(t, "Budi", resp.Record.StudentName)
	assert.NotContains(t, w.Body.String(), tok.Value)

	second := a.issue(t, 300)
	w = a.do(t, http.MethodPost, "/v1/attendance", a.student, submitRequest{Token: second.Value})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(t, http.MethodPost, "/v1/attendance", a.student, submitRequest{Token: "nonexistent"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, attendance.ReasonUnknownToken, resp.Reason)

	w = a.do(t, http.MethodPost, "/v1/attendance", a.student, submitRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/v1/attendance", a.teacher, submitRequest{Token: tok.Value})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSubmitExpiredAndExplicitlyExpiredTokens(t *testing.T) {
	a := newAPI(t)
	tok := a.issue(t, 60)

	w := a.do(t, http.MethodPost, "/v1/tokens/"+tok.Value+"/expire", a.teacher, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = a.do(t, http.MethodPost, "/v1/tokens/"+tok.Value+"/expire", a.teacher, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(t, http.MethodPost, "/v1/attendance", a.student, submitRequest{Token: tok.Value})
	assert.Equal(t, http.StatusForbidden, w.Code)

	late := a.issue(t, 60)
	a.clock.Advance(61 * time.Second)
	w = a.do(t, http.MethodPost, "/v1/attendance", a.student, submitRequest{Token: late.Value})
	assert.Equal(t, http.StatusForbidden, w.Code)
	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, attendance.ReasonExpired, resp.Reason)
}

func TestHistoryEndpoints(t *testing.T) {
	a := newAPI(t)
	tok := a.issue(t, 300)
	w := a.do(t, http.MethodPost, "/v1/attendance", a.student, submitRequest{Token: tok.Value})
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Records []attendance.Record `json:"records"`
	}

	w = a.do(t, http.MethodGet, "/v1/attendance/me", a.student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Records, 1)

	w = a.do(t, http.MethodGet, "/v1/students/42/attendance", a.teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Records, 1)

	w = a.do(t, http.MethodGet, "/v1/students/abc/attendance", a.teacher, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodGet, "/v1/attendance?date=2024-03-11", a.teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Records, 1)

	w = a.do(t, http.MethodGet, "/v1/attendance?date=2024-03-12", a.teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Records)

	w = a.do(t, http.MethodGet, "/v1/attendance?date=11-03-2024", a.teacher, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodGet, "/v1/attendance", a.student, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(nil, nil, nil, nil, map[string]HealthCheck{
		"redis": func(context.Context) bool { return false },
	}).Register(r, signingKey, jwtIssuer)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
