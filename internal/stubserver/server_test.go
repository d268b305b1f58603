package stubserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/commitq/pkg/job"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + SocketPath
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func roundTrip(t *testing.T, ws *websocket.Conn, req job.Request) map[string]any {
	t.Helper()
	require.NoError(t, ws.WriteJSON(req))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var reply map[string]any
	require.NoError(t, json.Unmarshal(data, &reply))
	return reply
}

func TestServer_RepliesAndRecordsRequests(t *testing.T) {
	stub := New(Options{FailEvery: 2})
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	ws := dial(t, srv)

	tmpl := job.Template{UserID: job.NumericID(1), ChatID: job.NewID("c"), RepoURL: "r", ProjectType: "python", TestCommand: "pytest tests/"}

	first := roundTrip(t, ws, tmpl.For("aaaaaaaaaa"))
	assert.Equal(t, job.StatusSuccess, first["type"])
	assert.Equal(t, "aaaaaaaaaa", first["commitHash"])

	second := roundTrip(t, ws, tmpl.For("bbbbbbbbbb"))
	assert.Equal(t, "error", second["type"])

	reqs := stub.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "aaaaaaaaaa", reqs[0].CommitHash)
	assert.Equal(t, "bbbbbbbbbb", reqs[1].CommitHash)
	assert.Equal(t, "1", reqs[0].UserID.String())
	require.NotNil(t, reqs[0].TestCommand)
	assert.Equal(t, "pytest tests/", *reqs[0].TestCommand)
}

func TestServer_PlaysScriptFirst(t *testing.T) {
	stub := New(Options{Script: [][]byte{[]byte("not json")}})
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	ws := dial(t, srv)

	require.NoError(t, ws.WriteJSON(job.Request{CommitHash: "a"}))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "not json", string(data))

	reply := roundTrip(t, ws, job.Request{CommitHash: "b"})
	assert.Equal(t, job.StatusSuccess, reply["type"])
}

func TestServer_Healthz(t *testing.T) {
	srv := httptest.NewServer(New(Options{}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}
