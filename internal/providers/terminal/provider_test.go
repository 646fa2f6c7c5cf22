package terminal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) (*Provider, *Manager) {
	t.Helper()
	m, _ := newTestManager(t, &fakeLauncher{})
	c := NewCoordinator(m, &fakeExecutor{}, CoordinatorConfig{})
	return NewProvider(m, c), m
}

func createViaProvider(t *testing.T, p *Provider) string {
	t.Helper()
	res, err := p.Execute(testContext(t), "terminal.create_session", map[string]interface{}{
		"cols": float64(90),
		"rows": float64(20),
		"env":  map[string]interface{}{"A": "1", "B": 2},
	}, nil)
	require.NoError(t, err)
	require.True(t, res.Success, "create failed: %v", res.Error)

	data := res.Data
	sessionID, ok := data["session_id"].(string)
	require.True(t, ok)
	return sessionID
}

func TestProviderDefinition(t *testing.T) {
	p, _ := newTestProvider(t)

	def := p.Definition()
	assert.Equal(t, "terminal", def.ID)

	ids := make(map[string]bool)
	for _, tool := range def.Tools {
		ids[tool.ID] = true
	}
	for _, want := range []string{
		"terminal.create_session", "terminal.execute", "terminal.cancel",
		"terminal.write", "terminal.scrollback", "terminal.resize",
		"terminal.list_sessions", "terminal.get_session", "terminal.kill",
		"terminal.detected_url",
	} {
		assert.True(t, ids[want], "missing tool %s", want)
	}
}

func TestProviderSessionLifecycle(t *testing.T) {
	p, m := newTestProvider(t)
	ctx := testContext(t)
	sessionID := createViaProvider(t, p)

	info, err := m.GetSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, uint16(90), info.Cols)

	res, err := p.Execute(ctx, "terminal.list_sessions", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Data["count"])

	res, err = p.Execute(ctx, "terminal.resize", map[string]interface{}{
		"session_id": sessionID, "cols": float64(132), "rows": float64(43),
	}, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = p.Execute(ctx, "terminal.get_session", map[string]interface{}{"session_id": sessionID}, nil)
	require.NoError(t, err)
	got := res.Data["session"].(*SessionInfo)
	assert.Equal(t, uint16(132), got.Cols)

	res, err = p.Execute(ctx, "terminal.kill", map[string]interface{}{"session_id": sessionID}, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = p.Execute(ctx, "terminal.kill", map[string]interface{}{"session_id": sessionID}, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestProviderExecute(t *testing.T) {
	p, _ := newTestProvider(t)
	sessionID := createViaProvider(t, p)

	res, err := p.Execute(testContext(t), "terminal.execute", map[string]interface{}{
		"session_id": sessionID,
		"command":    "fail",
	}, nil)
	require.NoError(t, err)
	require.True(t, res.Success)

	data := res.Data
	assert.Equal(t, 2, data["exit_code"])
	assert.Contains(t, data["output"], "boom")
	assert.Equal(t, false, data["proxy"])

	res, err = p.Execute(testContext(t), "terminal.execute", map[string]interface{}{
		"session_id": sessionID,
		"command":    "curl http://example.com",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, res.Data["proxy"])
	assert.Equal(t, "proxied curl http://example.com", res.Data["output"])
}

func TestProviderWriteAndScrollback(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := testContext(t)
	sessionID := createViaProvider(t, p)

	res, err := p.Execute(ctx, "terminal.write", map[string]interface{}{
		"session_id": sessionID, "input": "abc",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Data["written"])

	res, err = p.Execute(ctx, "terminal.scrollback", map[string]interface{}{"session_id": sessionID}, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Data["output"], "Welcome")
}

func TestProviderValidation(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	tests := []struct {
		tool   string
		params map[string]interface{}
	}{
		{"terminal.execute", map[string]interface{}{"command": "ls"}},
		{"terminal.execute", map[string]interface{}{"session_id": "sess_x"}},
		{"terminal.execute", map[string]interface{}{"session_id": "sess_x", "command": "ls"}},
		{"terminal.write", map[string]interface{}{"session_id": "sess_x"}},
		{"terminal.resize", map[string]interface{}{"session_id": "sess_x", "cols": float64(0), "rows": float64(10)}},
		{"terminal.get_session", map[string]interface{}{"session_id": "sess_x"}},
		{"terminal.scrollback", map[string]interface{}{}},
		{"terminal.cancel", map[string]interface{}{}},
	}
	for _, tt := range tests {
		res, err := p.Execute(ctx, tt.tool, tt.params, nil)
		require.NoError(t, err, tt.tool)
		assert.False(t, res.Success, "%s %v", tt.tool, tt.params)
		assert.NotNil(t, res.Error)
	}

	_, err := p.Execute(ctx, "terminal.nope", nil, nil)
	assert.Error(t, err)
}

func TestProviderCancelAndDetectedURL(t *testing.T) {
	p, m := newTestProvider(t)
	ctx := testContext(t)

	res, err := p.Execute(ctx, "terminal.cancel", map[string]interface{}{"session_id": "sess_x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, false, res.Data["canceled"])

	m.DetectedURL().Set("exp://h:1", "sess_x")
	res, err = p.Execute(ctx, "terminal.detected_url", nil, nil)
	require.NoError(t, err)
	data := res.Data
	assert.Equal(t, "exp://h:1", data["url"])
	assert.Equal(t, "sess_x", data["session_id"])
}
