package fetchers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var day = time.Date(2015, 10, 21, 0, 0, 0, 0, time.UTC)

type httpMock struct {
	status  int
	payload string
	request *http.Request
}

func (h *httpMock) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	h.request = request
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(h.status)
	_, _ = writer.Write([]byte(h.payload))
}

func newServer(t *testing.T, status int, payload string) (*httptest.Server, *httpMock) {
	t.Helper()
	handler := &httpMock{status: status, payload: payload}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return server, handler
}
