package proxy

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

// Response is the /api/proxy wire body
type Response struct {
	Status     int               `json:"status,omitempty"`
	StatusText string            `json:"statusText,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Data       interface{}       `json:"data,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Outcome is a proxy response rendered for a terminal
type Outcome struct {
	Output   string
	ExitCode int
	Response *Response
}

// Executor runs proxy commands outside the shell
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*Outcome, error)
}

// StatusError is a non-2xx answer from the proxy endpoint itself
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("proxy returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("proxy returned %d: %s", e.Code, e.Message)
}

// NewOutcome renders a response. An error field or a 4xx/5xx upstream
// status yields exit code 1.
func NewOutcome(resp *Response) *Outcome {
	out := &Outcome{Response: resp}

	if resp.Error != "" {
		out.Output = "Error: " + resp.Error
		out.ExitCode = 1
		return out
	}

	var sb strings.Builder
	if resp.Status >= http.StatusBadRequest {
		out.ExitCode = 1
		fmt.Fprintf(&sb, "HTTP %d %s\n", resp.Status, resp.StatusText)
	}
	sb.WriteString(FormatData(resp.Data))
	out.Output = strings.TrimRight(sb.String(), "\n")
	return out
}

// FormatData renders response data as text; structured values are
// pretty-printed JSON
func FormatData(data interface{}) string {
	switch v := data.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		pretty, err := sonic.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(pretty)
	}
}
