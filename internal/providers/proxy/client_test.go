package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/shellbridge/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// proxyEndpoint fakes the remote /api/proxy handler
func proxyEndpoint(t *testing.T, seen *[]Command) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/proxy", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var cmd Command
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("command")), &cmd))
		*seen = append(*seen, cmd)

		w.Header().Set("Content-Type", "application/json")
		switch cmd.Args[0] {
		case "bad":
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(Response{Error: "Unsupported command: x"})
		case "html":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("<html>oops</html>"))
		default:
			_ = json.NewEncoder(w).Encode(Response{Status: 200, StatusText: "OK", Data: map[string]interface{}{"echo": cmd.Args[0]}})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientExecute(t *testing.T) {
	var seen []Command
	srv := proxyEndpoint(t, &seen)

	cfg := testConfig()
	cfg.BaseURL = srv.URL
	client := NewClient(cfg, nil)

	out, err := client.Execute(context.Background(), Command{Command: "curl", Args: []string{"https://x.dev"}})
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "{\n  \"echo\": \"https://x.dev\"\n}", out.Output)
	assert.Equal(t, []Command{{Command: "curl", Args: []string{"https://x.dev"}}}, seen)
}

func TestClientStatusErrors(t *testing.T) {
	var seen []Command
	srv := proxyEndpoint(t, &seen)

	cfg := testConfig()
	cfg.BaseURL = srv.URL
	client := NewClient(cfg, nil)

	_, err := client.Execute(context.Background(), Command{Command: "curl", Args: []string{"bad"}})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
	assert.Equal(t, "proxy returned 400: Unsupported command: x", err.Error())

	_, err = client.Execute(context.Background(), Command{Command: "fetch", Args: []string{"html"}})
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestClientRefusesNativeCommands(t *testing.T) {
	client := NewClient(testConfig(), nil)
	_, err := client.Execute(context.Background(), Command{Command: "ls"})
	assert.ErrorIs(t, err, ErrUnsupportedCommand)
}

func TestLocalExecutor(t *testing.T) {
	srv := upstream(t)
	exec := NewLocalExecutor(NewRunner(testConfig(), nil))

	out, err := exec.Execute(context.Background(), Command{Command: "curl", Args: []string{srv.URL + "/echo"}})
	require.NoError(t, err)
	assert.Equal(t, "GET", out.Output[:3])

	_, err = exec.Execute(context.Background(), Command{Command: "wget", Args: []string{srv.URL}})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
}

type stubExecutor struct {
	outcome *Outcome
	err     error
	calls   []Command
}

func (s *stubExecutor) Execute(ctx context.Context, cmd Command) (*Outcome, error) {
	s.calls = append(s.calls, cmd)
	return s.outcome, s.err
}

func TestProviderTools(t *testing.T) {
	stub := &stubExecutor{outcome: &Outcome{Output: "hi", Response: &Response{Status: 200}}}
	p := NewProvider(stub)

	res, err := p.Execute(context.Background(), "proxy.classify", map[string]interface{}{"line": "fetch a"}, &types.Context{})
	require.NoError(t, err)
	assert.Equal(t, "fetch", res.Data["kind"])
	assert.Equal(t, true, res.Data["proxy"])

	res, err = p.Execute(context.Background(), "proxy.execute", map[string]interface{}{"line": "curl a"}, &types.Context{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "hi", res.Data["output"])
	assert.Equal(t, 200, res.Data["status"])

	res, err = p.Execute(context.Background(), "proxy.execute", map[string]interface{}{"line": "ls"}, &types.Context{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Len(t, stub.calls, 1)

	_, err = p.Execute(context.Background(), "proxy.nope", map[string]interface{}{"line": "ls"}, &types.Context{})
	assert.Error(t, err)
}

func TestHTTPClientRetriesTransportErrors(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	client := newHTTPClient("test", ClientConfig{Timeout: 5 * time.Second, Retries: 2}, zap.NewNop())
	resp, err := client.resty.R().Get(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.String())
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts), "Retries bounds resty's attempts")
}
