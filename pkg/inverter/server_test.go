package inverter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"growattgateway/pkg/apis/response"
	"growattgateway/pkg/protocol/growatt"
)

func newTestRouter(t *testing.T, fm *fakeMessenger) (*gin.Engine, *Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := NewManager([]Config{testConfig(t, "inv", time.Hour)}, nil,
		withMessengers(map[string]*fakeMessenger{"127.0.0.1:502": fm}),
	)
	require.NoError(t, m.Init(context.Background()))
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	router := gin.New()
	InstallHandler(router.Group("/api/v1"), m)
	return router, m
}

func serve(router *gin.Engine, method string, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

type entitiesBody struct {
	Entities []*growatt.EntityState `json:"entities"`
}

func TestListInvertersHandler(t *testing.T) {
	require := require.New(t)
	router, _ := newTestRouter(t, newFakeMessenger(map[uint16]uint16{0: 1}))

	rec := serve(router, http.MethodGet, "/api/v1/inverters")
	require.Equal(http.StatusOK, rec.Code)
	var body struct {
		Inverters []*InverterMeta `json:"inverters"`
	}
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(body.Inverters, 1)
	require.Equal("inv", body.Inverters[0].ID)
	require.Equal("127.0.0.1", body.Inverters[0].Host)
	require.Equal(502, body.Inverters[0].Port)

	rec = serve(router, http.MethodGet, "/api/v1/inverters?filter="+url.QueryEscape(`{"id":"other"}`))
	require.Equal(http.StatusOK, rec.Code)
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(body.Inverters)

	rec = serve(router, http.MethodGet, "/api/v1/inverters?filter="+url.QueryEscape(`{"id":`))
	require.Equal(http.StatusBadRequest, rec.Code)
	var errs response.MultiError
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &errs))
	require.Equal(1, errs.Len())
}

func TestGetInverterHandler(t *testing.T) {
	require := require.New(t)
	router, _ := newTestRouter(t, newFakeMessenger(map[uint16]uint16{0: 1}))

	rec := serve(router, http.MethodGet, "/api/v1/inverters/inv?exploded=true")
	require.Equal(http.StatusOK, rec.Code)
	var meta InverterMeta
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &meta))
	require.Equal("Inverter inv", meta.Name)
	require.Len(meta.Entities, 3)

	rec = serve(router, http.MethodGet, "/api/v1/inverters/missing")
	require.Equal(http.StatusNotFound, rec.Code)
	require.Contains(rec.Body.String(), "10002")
}

func TestEntitiesHandlers(t *testing.T) {
	require := require.New(t)
	router, _ := newTestRouter(t, newFakeMessenger(map[uint16]uint16{0: 1, 38: 2305}))

	rec := serve(router, http.MethodPost, "/api/v1/inverters/inv/refresh")
	require.Equal(http.StatusOK, rec.Code)
	var body entitiesBody
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(body.Entities, 3)

	filter := url.QueryEscape(`{"name":{"startsWith":"电网"}}`)
	rec = serve(router, http.MethodGet, "/api/v1/inverters/inv/entities?filter="+filter)
	require.Equal(http.StatusOK, rec.Code)
	body = entitiesBody{}
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(body.Entities, 1)
	require.Equal("inv_38", body.Entities[0].ID)
	require.InDelta(230.5, body.Entities[0].Value, 1e-9)
	require.NotNil(body.Entities[0].UpdatedAt)

	rec = serve(router, http.MethodGet, "/api/v1/inverters/inv/entities/inv_0")
	require.Equal(http.StatusOK, rec.Code)
	var state growatt.EntityState
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &state))
	require.Equal("正常", state.Value)

	rec = serve(router, http.MethodGet, "/api/v1/inverters/inv/entities/inv_39")
	require.Equal(http.StatusNotFound, rec.Code)
	require.Contains(rec.Body.String(), "10003")

	rec = serve(router, http.MethodGet, "/api/v1/inverters/missing/entities/inv_0")
	require.Equal(http.StatusNotFound, rec.Code)
	require.Contains(rec.Body.String(), "10002")

	rec = serve(router, http.MethodGet, "/api/v1/inverters/missing/entities")
	require.Equal(http.StatusNotFound, rec.Code)
}

func TestRefreshHandlerNoData(t *testing.T) {
	require := require.New(t)
	fm := newFakeMessenger(map[uint16]uint16{})
	fm.down.Store(true)
	router, _ := newTestRouter(t, fm)

	rec := serve(router, http.MethodPost, "/api/v1/inverters/inv/refresh")
	require.Equal(http.StatusServiceUnavailable, rec.Code)
	require.Contains(rec.Body.String(), "10004")

	rec = serve(router, http.MethodPost, "/api/v1/inverters/missing/refresh")
	require.Equal(http.StatusNotFound, rec.Code)
}

func TestRefreshHandlerStopped(t *testing.T) {
	require := require.New(t)
	router, m := newTestRouter(t, newFakeMessenger(map[uint16]uint16{0: 1}))
	require.NoError(m.Shutdown(context.Background()))

	rec := serve(router, http.MethodPost, "/api/v1/inverters/inv/refresh")
	require.Equal(http.StatusServiceUnavailable, rec.Code)
	require.Contains(rec.Body.String(), "10004")
}
