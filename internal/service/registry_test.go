package service

import (
	"context"
	"testing"

	"github.com/GriffinCanCode/shellbridge/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	id       string
	category types.Category
	seen     *types.Context
}

func (m *mockProvider) Definition() types.Service {
	category := m.category
	if category == "" {
		category = types.CategorySystem
	}
	return types.Service{
		ID:           m.id,
		Name:         "Mock Service",
		Description:  "A mock shell service",
		Category:     category,
		Capabilities: []string{"execute", "url_detection"},
		Tools: []types.Tool{
			{
				ID:          m.id + ".test",
				Name:        "Test Tool",
				Description: "A test tool",
				Returns:     "string",
			},
		},
	}
}

func (m *mockProvider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	m.seen = appCtx
	return types.Success(map[string]interface{}{"tool": toolID, "params": len(params)})
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "test"}))

	_, ok := r.Get("test")
	assert.True(t, ok)

	assert.Error(t, r.Register(&mockProvider{id: "test"}), "duplicate ID")
	assert.Error(t, r.Register(&mockProvider{id: ""}), "empty ID")

	r.Unregister("test")
	_, ok = r.Get("test")
	assert.False(t, ok)
}

func TestList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "b"}))
	require.NoError(t, r.Register(&mockProvider{id: "a"}))
	require.NoError(t, r.Register(&mockProvider{id: "web", category: types.CategoryHTTP}))

	services := r.List(nil)
	require.Len(t, services, 3)
	assert.Equal(t, "a", services[0].ID)
	assert.Equal(t, "b", services[1].ID)

	httpOnly := types.CategoryHTTP
	services = r.List(&httpOnly)
	require.Len(t, services, 1)
	assert.Equal(t, "web", services[0].ID)

	assert.NotNil(t, NewRegistry().List(nil))
}

func TestDiscover(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "terminal"}))
	require.NoError(t, r.Register(&mockProvider{id: "web", category: types.CategoryHTTP}))

	services := r.Discover("open a terminal and execute", 5)
	require.NotEmpty(t, services)
	assert.Equal(t, "terminal", services[0].ID)

	assert.Len(t, r.Discover("shell", 1), 1)
	assert.Empty(t, r.Discover("zzz", 5))
}

func TestExecute(t *testing.T) {
	r := NewRegistry()
	p := &mockProvider{id: "test"}
	require.NoError(t, r.Register(p))

	sessionID := "sess_1"
	res, err := r.Execute(context.Background(), "test.test", nil, &types.Context{SessionID: &sessionID})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "test.test", res.Data["tool"])
	assert.Equal(t, 0, res.Data["params"])
	require.NotNil(t, p.seen)
	assert.Equal(t, "sess_1", *p.seen.SessionID)

	res, err = r.Execute(context.Background(), "nodot", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidToolID)
	assert.False(t, res.Success)

	res, err = r.Execute(context.Background(), "missing.tool", nil, nil)
	assert.ErrorIs(t, err, ErrServiceNotFound)
	assert.False(t, res.Success)
}

func TestStats(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "test1"}))
	require.NoError(t, r.Register(&mockProvider{id: "test2"}))

	stats := r.Stats()
	assert.Equal(t, 2, stats["total_services"])
	assert.Equal(t, 2, stats["total_tools"])
	assert.Equal(t, map[string]int{string(types.CategorySystem): 2}, stats["categories"])
}
