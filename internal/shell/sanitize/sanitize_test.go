package sanitize

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "colors and crlf",
			input: "\x1b[32mok\x1b[0m\r\nerror: x failed\r\n",
			want:  "ok\nerror: x failed",
		},
		{
			name:  "osc markers",
			input: "\x1b]654;prompt\x07ls\r\n\x1b]0;title\x1b\\a.txt\x1b]654;exit=0:1\x07",
			want:  "ls\na.txt",
		},
		{
			name:  "bare osc body",
			input: "]654;exit=0:0\x07done",
			want:  "done",
		},
		{
			name:  "charset selection and trailing escape",
			input: "a\x1b(Bb\x1b",
			want:  "ab",
		},
		{
			name:  "private modes and dcs",
			input: "\x1b[?2004hready\x1bP1$r0m\x1b\\\x1b[?2004l",
			want:  "ready",
		},
		{
			name:  "blank runs collapse",
			input: "one\n\n\n\n\ntwo\r\rthree",
			want:  "one\ntwo\nthree",
		},
		{
			name:  "error label split",
			input: "build output error: missing module",
			want:  "build output\nerror: missing module",
		},
		{
			name:  "case insensitive warning",
			input: "compiled WARNING: deprecated",
			want:  "compiled\nWARNING: deprecated",
		},
		{
			name:  "path with error segment stays",
			input: "open /var/log/error:1 ok",
			want:  "open /var/log/error:1 ok",
		},
		{
			name:  "word containing error stays",
			input: "terrors: none",
			want:  "terrors: none",
		},
		{
			name:  "stack frames",
			input: "TypeError: boom at run (/app/index.js:3:9) at async main (/app/index.js:9:1)",
			want:  "TypeError: boom\nat run (/app/index.js:3:9)\nat async main (/app/index.js:9:1)",
		},
		{
			name:  "prose with at is not a frame",
			input: "look at the docs",
			want:  "look at the docs",
		},
		{
			name:  "prompt split",
			input: "done > next",
			want:  "done\n> next",
		},
		{
			name:  "arrow is not a prompt",
			input: "a -> b",
			want:  "a -> b",
		},
		{
			name:  "space runs and labels",
			input: "  name:    value   here  \x00",
			want:  "name: value here",
		},
		{
			name:  "label with tab",
			input: "status:\tok",
			want:  "status: ok",
		},
		{
			name:  "empty",
			input: "\r\n\x1b[0m\r\n",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Sanitize(got), "not idempotent")
		})
	}
}

func TestSanitizeIdempotentOnSamples(t *testing.T) {
	alphabet := []string{
		"a", "b", "z", "0", "7", " ", "  ", "\t", "\n", "\r", "\r\n", "\x00",
		"\x1b", "\x1b[", "\x1b[31m", "\x1b[0m", "\x1b]", "\x1b]0;t\x07", "]654;", "\x07", "\x1b\\",
		"error:", "Failed:", "warning:", ":", "at ", "async ", "(", ")", "/tmp/x.js:1:2", ">", "-", "=",
	}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		var sb strings.Builder
		n := rng.Intn(24)
		for j := 0; j < n; j++ {
			sb.WriteString(alphabet[rng.Intn(len(alphabet))])
		}
		x := sb.String()
		once := Sanitize(x)
		assert.Equal(t, once, Sanitize(once), "input %q", x)
	}
}

func TestSanitizePlainTextUnchanged(t *testing.T) {
	inputs := []string{"hello", "line one\nline two", "key: value"}
	for _, in := range inputs {
		assert.Equal(t, in, Sanitize(in))
	}
}
