package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-store/pkg/simplestore"
	"github.com/tendant/simple-store/pkg/simplestore/repo/memory"
	memorystorage "github.com/tendant/simple-store/pkg/simplestore/storage/memory"
)

// setupRouter creates the full router over in-memory backends
func setupRouter(t *testing.T, options ...simplestore.Option) (chi.Router, simplestore.Service) {
	t.Helper()
	opts := append([]simplestore.Option{
		simplestore.WithUserRepository(memory.New()),
		simplestore.WithObjectStore(memorystorage.New()),
	}, options...)

	svc, err := simplestore.New(opts...)
	require.NoError(t, err)

	return NewRouter(svc, RouterConfig{Prefix: "/api", Environment: "test"}), svc
}

func doRequest(t *testing.T, h http.Handler, method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, h http.Handler, method, target string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return doRequest(t, h, method, target, body, map[string]string{"Content-Type": "application/json"})
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
