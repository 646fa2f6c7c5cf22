package proxy

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes caps how much of an upstream body is rendered
const DefaultMaxBodyBytes = 1 << 20

var blankLinesPattern = regexp.MustCompile(`\n{3,}`)

// request is a parsed curl/fetch invocation
type request struct {
	method  string
	url     string
	headers map[string]string
	body    string
	user    string
	head    bool
}

// flags that take a value, as separate token or glued (-XPOST, --request=POST)
var valueFlags = map[string]bool{
	"-X": true, "--request": true, "--method": true,
	"-H": true, "--header": true,
	"-d": true, "--data": true, "--data-raw": true, "--data-binary": true, "--data-ascii": true,
	"--body": true, "--json": true,
	"-A": true, "--user-agent": true,
	"-u": true, "--user": true,
	"-e": true, "--referer": true,
	"-o": true, "--output": true,
	"-m": true, "--max-time": true, "--connect-timeout": true,
}

func splitFlag(arg string) (name, value string, inline bool) {
	if strings.HasPrefix(arg, "--") {
		if n, v, ok := strings.Cut(arg, "="); ok {
			return n, v, true
		}
		return arg, "", false
	}
	if len(arg) > 2 && arg[0] == '-' && valueFlags[arg[:2]] {
		return arg[:2], arg[2:], true
	}
	return arg, "", false
}

// parseRequest maps curl/fetch arguments onto an HTTP request. Flags that
// only affect curl's own output (-s, -L, -v, ...) are accepted and ignored.
func parseRequest(cmd Command) (*request, error) {
	req := &request{headers: make(map[string]string)}
	args := cmd.Args

	for i := 0; i < len(args); i++ {
		name, val, inline := splitFlag(args[i])
		if valueFlags[name] && !inline {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("option %s requires a value", name)
			}
			i++
			val = args[i]
		}

		switch name {
		case "-X", "--request", "--method":
			req.method = strings.ToUpper(val)
		case "-H", "--header":
			k, v, ok := strings.Cut(val, ":")
			if !ok || strings.TrimSpace(k) == "" {
				return nil, fmt.Errorf("invalid header %q", val)
			}
			req.headers[http.CanonicalHeaderKey(strings.TrimSpace(k))] = strings.TrimSpace(v)
		case "-d", "--data", "--data-raw", "--data-binary", "--data-ascii", "--body":
			if req.body != "" {
				req.body += "&"
			}
			req.body += val
		case "--json":
			req.body += val
			req.headers["Content-Type"] = "application/json"
			req.headers["Accept"] = "application/json"
		case "-A", "--user-agent":
			req.headers["User-Agent"] = val
		case "-e", "--referer":
			req.headers["Referer"] = val
		case "-u", "--user":
			req.user = val
		case "-I", "--head":
			req.head = true
		case "-o", "--output", "-m", "--max-time", "--connect-timeout":
		default:
			if strings.HasPrefix(name, "-") && name != "-" {
				continue
			}
			if req.url != "" {
				return nil, fmt.Errorf("multiple URLs are not supported")
			}
			req.url = name
		}
	}

	if req.url == "" {
		return nil, fmt.Errorf("no URL specified")
	}
	if !strings.Contains(req.url, "://") {
		req.url = "http://" + req.url
	}
	u, err := url.Parse(req.url)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", req.url)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	switch {
	case req.method != "":
	case req.head:
		req.method = http.MethodHead
	case req.body != "":
		req.method = http.MethodPost
	default:
		req.method = http.MethodGet
	}
	if req.body != "" {
		if _, ok := req.headers["Content-Type"]; !ok {
			req.headers["Content-Type"] = "application/x-www-form-urlencoded"
		}
	}
	return req, nil
}

// Runner performs curl/fetch requests on behalf of the /api/proxy endpoint
type Runner struct {
	http         *httpClient
	policy       *bluemonday.Policy
	maxBodyBytes int
	logger       *zap.Logger
}

// NewRunner creates a runner for outbound requests
func NewRunner(cfg ClientConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = ""
	return &Runner{
		http:         newHTTPClient("proxy-outbound", cfg, logger),
		policy:       bluemonday.StrictPolicy(),
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       logger,
	}
}

// Run executes cmd and returns the wire body with the HTTP status the
// endpoint should answer with: 400 for rejected commands, 502 when the
// upstream cannot be reached, 200 otherwise.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Response, int) {
	kind := cmd.Kind()
	if !kind.IsProxy() {
		return &Response{Error: fmt.Sprintf("Unsupported command: %s", cmd.Command)}, http.StatusBadRequest
	}

	req, err := parseRequest(cmd)
	if err != nil {
		return &Response{Error: fmt.Sprintf("%s: %v", cmd.Command, err)}, http.StatusBadRequest
	}

	resp, err := r.http.do(ctx, func(rq *resty.Request) (*resty.Response, error) {
		rq.SetHeaders(req.headers)
		if req.body != "" {
			rq.SetBody(req.body)
		}
		if req.user != "" {
			user, pass, _ := strings.Cut(req.user, ":")
			rq.SetBasicAuth(user, pass)
		}
		return rq.Execute(req.method, req.url)
	})
	if err != nil {
		r.logger.Warn("Outbound proxy request failed",
			zap.String("command", cmd.Command),
			zap.String("url", req.url),
			zap.Error(err))
		return &Response{Error: err.Error()}, http.StatusBadGateway
	}

	out := &Response{
		Status:     resp.StatusCode(),
		StatusText: http.StatusText(resp.StatusCode()),
		Headers:    flattenHeaders(resp.Header()),
	}
	if !req.head {
		out.Data = r.decodeBody(kind, resp.Header().Get("Content-Type"), resp.Body())
	}
	return out, http.StatusOK
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// decodeBody turns a body into wire data: JSON is decoded, text is kept as
// a string, HTML is reduced to text for fetch, anything else is summarized
func (r *Runner) decodeBody(kind Kind, contentType string, body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}

	detected := mimetype.Detect(body)
	if contentType == "" {
		contentType = detected.String()
	}
	ct := strings.ToLower(contentType)

	if strings.Contains(ct, "json") {
		var v interface{}
		if err := sonic.Unmarshal(body, &v); err == nil {
			return v
		}
	}

	if !isText(ct, detected) {
		return fmt.Sprintf("[binary data: %d bytes, %s]", len(body), detected.String())
	}

	truncated := false
	if len(body) > r.maxBodyBytes {
		body = body[:r.maxBodyBytes]
		truncated = true
	}

	text := string(body)
	if kind == KindFetch && strings.Contains(ct, "html") {
		text = r.htmlToText(text)
	}
	if truncated {
		text += "\n[truncated]"
	}
	return text
}

func isText(contentType string, detected *mimetype.MIME) bool {
	switch {
	case strings.HasPrefix(contentType, "text/"),
		strings.Contains(contentType, "json"),
		strings.Contains(contentType, "xml"),
		strings.Contains(contentType, "javascript"),
		strings.Contains(contentType, "x-www-form-urlencoded"):
		return true
	}
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// htmlToText strips markup, keeping visible text with one blank line at
// most between blocks
func (r *Runner) htmlToText(doc string) string {
	text := html.UnescapeString(r.policy.Sanitize(doc))

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLinesPattern.ReplaceAllString(text, "\n\n"))
}
