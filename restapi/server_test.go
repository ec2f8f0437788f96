package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magiccloud/cqldata"
	"github.com/magiccloud/cqldata/caching"
	"github.com/magiccloud/cqldata/cassandra"
	"github.com/magiccloud/cqldata/files"
	"github.com/magiccloud/cqldata/logging"
	"github.com/magiccloud/cqldata/metrics"
	"github.com/magiccloud/cqldata/slots"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// staticVerifier maps accepted tokens to their root_folder claim; "" omits the claim.
type staticVerifier map[string]string

func (v staticVerifier) VerifyAccessToken(token string) (map[string]any, error) {
	root, ok := v[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	claims := map[string]any{"sub": "tester"}
	if root != "" {
		claims["root_folder"] = root
	}
	return claims, nil
}

func newServer(t *testing.T, options Options) *gin.Engine {
	root := cqldata.NewRootResolver("/acme/prod/", "")
	store := cassandra.NewMockFileStore()
	fs := files.NewFileService(store, root)
	logger, err := logging.NewLogger(cassandra.NewMockLogStore(), root, logging.Options{}, nil)
	require.NoError(t, err)
	sig := slots.NewSignaler()
	return NewRouter(Services{
		Files:    fs,
		Folders:  files.NewFolderService(store, root),
		Streams:  files.NewStreamService(fs),
		Cache:    caching.NewCache(cassandra.NewMockCacheStore(), root, nil),
		Logger:   logger,
		LogQuery: logger,
		Signaler: sig,
	}, options)
}

func do(r http.Handler, method string, target string, body []byte, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func asJSON(t *testing.T, v any) []byte {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestFilesRoundTrip(t *testing.T) {
	r := newServer(t, Options{})
	w := do(r, http.MethodPut, "/api/v1/files?path=/acme/prod/a.txt", []byte("hello"))
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/files?path=/acme/prod/a.txt", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/files/list?folder=/acme/prod/", nil)
	assert.JSONEq(t, `["/acme/prod/a.txt"]`, w.Body.String())

	w = do(r, http.MethodPost, "/api/v1/files/move", asJSON(t, copyRequest{Source: "/acme/prod/a.txt", Destination: "/acme/prod/b.txt"}))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/api/v1/files?path=/acme/prod/a.txt", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMissingFolderIsPreconditionFailed(t *testing.T) {
	r := newServer(t, Options{})
	w := do(r, http.MethodPut, "/api/v1/files?path=/acme/prod/nope/a.txt", []byte("x"))
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	w = do(r, http.MethodPost, "/api/v1/folders?path=/acme/prod/nope/", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodPut, "/api/v1/streams?path=/acme/prod/nope/a.txt", []byte("x"))
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodGet, "/api/v1/streams?path=/acme/prod/nope/a.txt", nil)
	assert.Equal(t, "x", w.Body.String())
	w = do(r, http.MethodGet, "/api/v1/folders/list?folder=/acme/prod/", nil)
	assert.JSONEq(t, `["/acme/prod/nope/"]`, w.Body.String())
}

func TestCacheEndpoints(t *testing.T) {
	r := newServer(t, Options{})
	item := cacheItem{Value: "v", Expires: time.Now().Add(time.Hour)}
	w := do(r, http.MethodPut, "/api/v1/cache/item?key=k1", asJSON(t, item))
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/cache/item?key=k1", nil)
	assert.JSONEq(t, `{"key":"k1","value":"v"}`, w.Body.String())
	w = do(r, http.MethodGet, "/api/v1/cache/item?key=k1&hidden=true", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodGet, "/api/v1/cache/item?key=.bad", nil)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	w = do(r, http.MethodGet, "/api/v1/cache", nil)
	assert.JSONEq(t, `[{"key":"k1","value":"v"}]`, w.Body.String())
	w = do(r, http.MethodDelete, "/api/v1/cache", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodGet, "/api/v1/cache", nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestLogEndpoints(t *testing.T) {
	r := newServer(t, Options{})
	w := do(r, http.MethodPost, "/api/v1/log", asJSON(t, logRequest{Type: "error", Content: "boom", StackTrace: "at x"}))
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = do(r, http.MethodPost, "/api/v1/log", asJSON(t, logRequest{Type: "chatty"}))
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	w = do(r, http.MethodGet, "/api/v1/log/count", nil)
	assert.JSONEq(t, `{"count":1}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/log?max=5", nil)
	var entries []cqldata.LogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "at x", entries[0].Exception)

	w = do(r, http.MethodGet, "/api/v1/log/items/"+entries[0].ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodGet, "/api/v1/log/count?content=bo", nil)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	w = do(r, http.MethodGet, "/api/v1/log/timeshift", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	w = do(r, http.MethodGet, "/api/v1/log/capabilities", nil)
	assert.JSONEq(t, `{"can_filter":false,"can_timeshift":false}`, w.Body.String())
}

func TestSlotEndpoint(t *testing.T) {
	r := newServer(t, Options{Verifier: staticVerifier{"secret": ""}})
	w := do(r, http.MethodPost, "/api/v1/slots/eval", []byte(`{"children":[{"name":".data","value":1}]}`), "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(r, http.MethodPost, "/api/v1/slots/eval", []byte(`{}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(r, http.MethodPost, "/api/v1/slots/nope", []byte(`{}`), "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSlotsUnregisteredWithoutVerifier(t *testing.T) {
	r := newServer(t, Options{})
	w := do(r, http.MethodPost, "/api/v1/slots/eval", []byte(`{"children":[{"name":".data","value":1}]}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodGet, "/api/v1/files/list?folder=/acme/prod/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTenantHeaderIsolatesTenants(t *testing.T) {
	r := newServer(t, Options{TenantHeader: "X-Root-Folder"})
	globex := []string{"X-Root-Folder", "/globex/prod/"}

	w := do(r, http.MethodPut, "/api/v1/files?path=/acme/prod/a.txt", []byte("acme"))
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = do(r, http.MethodPut, "/api/v1/files?path=/globex/prod/a.txt", []byte("globex"), globex...)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/files?path=/globex/prod/a.txt", nil, globex...)
	assert.Equal(t, "globex", w.Body.String())
	w = do(r, http.MethodGet, "/api/v1/files?path=/acme/prod/a.txt", nil)
	assert.Equal(t, "acme", w.Body.String())
	w = do(r, http.MethodGet, "/api/v1/files?path=/acme/prod/a.txt", nil, globex...)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	w = do(r, http.MethodGet, "/api/v1/files?path=/globex/prod/a.txt", nil)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	w = do(r, http.MethodGet, "/api/v1/files/list?folder=/globex/prod/", nil, globex...)
	assert.JSONEq(t, `["/globex/prod/a.txt"]`, w.Body.String())
	w = do(r, http.MethodGet, "/api/v1/files/list?folder=/acme/prod/", nil)
	assert.JSONEq(t, `["/acme/prod/a.txt"]`, w.Body.String())

	item := cacheItem{Value: "g", Expires: time.Now().Add(time.Hour)}
	w = do(r, http.MethodPut, "/api/v1/cache/item?key=k1", asJSON(t, item), globex...)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = do(r, http.MethodGet, "/api/v1/cache/item?key=k1", nil, globex...)
	assert.JSONEq(t, `{"key":"k1","value":"g"}`, w.Body.String())
	w = do(r, http.MethodGet, "/api/v1/cache/item?key=k1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/v1/files/list?folder=/acme/", nil, "X-Root-Folder", "/acme/")
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestTenantClaim(t *testing.T) {
	r := newServer(t, Options{
		Verifier:     staticVerifier{"a": "/acme/prod/", "g": "/globex/prod/", "anon": ""},
		TenantClaim:  "root_folder",
		TenantHeader: "X-Root-Folder",
	})
	w := do(r, http.MethodGet, "/api/v1/files/list?folder=/acme/prod/", nil, "Authorization", "Bearer anon")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPut, "/api/v1/files?path=/globex/prod/a.txt", []byte("globex"), "Authorization", "Bearer g")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = do(r, http.MethodGet, "/api/v1/files?path=/globex/prod/a.txt", nil, "Authorization", "Bearer a")
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	// the header cannot override a verified claim
	w = do(r, http.MethodGet, "/api/v1/files?path=/globex/prod/a.txt", nil,
		"Authorization", "Bearer a", "X-Root-Folder", "/globex/prod/")
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	w = do(r, http.MethodGet, "/api/v1/files?path=/globex/prod/a.txt", nil, "Authorization", "Bearer g")
	assert.Equal(t, "globex", w.Body.String())
}

func TestTokenVerification(t *testing.T) {
	r := newServer(t, Options{Verifier: staticVerifier{"secret": ""}})
	w := do(r, http.MethodGet, "/api/v1/files/list?folder=/acme/prod/", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(r, http.MethodGet, "/api/v1/files/list?folder=/acme/prod/", nil, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(r, http.MethodGet, "/api/v1/files/list?folder=/acme/prod/", nil, "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, nil)
	m.CacheResult("hit")
	r := newServer(t, Options{
		Gatherer: reg,
		Health:   func(ctx context.Context) error { return errors.New("no hosts available") },
	})
	w := do(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = do(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `cqldata_cache_requests_total{result="hit"} 1`)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusOf(cqldata.Errorf(cqldata.NotFound, "x")))
	assert.Equal(t, http.StatusPreconditionFailed, statusOf(cqldata.Errorf(cqldata.PreconditionFailed, "x")))
	assert.Equal(t, http.StatusConflict, statusOf(cqldata.Errorf(cqldata.ReadOnly, "x")))
	assert.Equal(t, http.StatusNotImplemented, statusOf(cqldata.Errorf(cqldata.NotImplemented, "x")))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("driver")))
}

func TestDuplicateRegistration(t *testing.T) {
	m := NewMethods()
	require.NoError(t, m.RegisterMethod(GET, "/x", func(*gin.Context) {}))
	assert.Error(t, m.RegisterMethod(GET, "/x", func(*gin.Context) {}))
	require.NoError(t, m.RegisterMethod(POST, "/x", func(*gin.Context) {}))
	assert.Len(t, m.All(), 2)
}
