package proxy

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/shellbridge/internal/shared/types"
)

// Provider exposes proxy commands as service tools
type Provider struct {
	executor Executor
}

// NewProvider creates a proxy tool provider over executor
func NewProvider(executor Executor) *Provider {
	return &Provider{executor: executor}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:           "proxy",
		Name:         "Proxy Service",
		Description:  "Runs curl and fetch command lines outside the sandboxed shell",
		Category:     types.CategoryHTTP,
		Capabilities: []string{"curl", "fetch", "classify"},
		Tools: []types.Tool{
			{
				ID:          "proxy.execute",
				Name:        "Execute Proxy Command",
				Description: "Run a curl or fetch command line through the proxy",
				Parameters: []types.Parameter{
					{Name: "line", Type: "string", Description: "Command line, e.g. curl -s https://example.com", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "proxy.classify",
				Name:        "Classify Command",
				Description: "Report whether a command line runs in the shell or through the proxy",
				Parameters: []types.Parameter{
					{Name: "line", Type: "string", Description: "Command line", Required: true},
				},
				Returns: "object",
			},
		},
	}
}

// Execute routes to the requested tool
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	line, ok := params["line"].(string)
	if !ok || line == "" {
		return types.Failure("line is required")
	}

	kind, cmd := Classify(line)

	switch toolID {
	case "proxy.classify":
		return types.Success(map[string]interface{}{
			"kind":    kind.String(),
			"proxy":   kind.IsProxy(),
			"command": cmd.Command,
			"args":    cmd.Args,
		})
	case "proxy.execute":
		if !kind.IsProxy() {
			return types.Failure(fmt.Sprintf("Unsupported command: %s", cmd.Command))
		}
		outcome, err := p.executor.Execute(ctx, cmd)
		if err != nil {
			return types.Failure(err.Error())
		}
		data := map[string]interface{}{
			"output":    outcome.Output,
			"exit_code": outcome.ExitCode,
		}
		if outcome.Response != nil && outcome.Response.Status != 0 {
			data["status"] = outcome.Response.Status
		}
		return types.Success(data)
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}
