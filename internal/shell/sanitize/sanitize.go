// Package sanitize turns captured terminal output into readable text.
//
// Sanitize strips escape sequences, normalizes line endings, breaks
// structural tokens (prompts, error labels, stack frames) onto their own
// lines and squeezes whitespace. It is pure and idempotent:
//
//	sanitize.Sanitize(sanitize.Sanitize(x)) == sanitize.Sanitize(x)
package sanitize

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

var (
	// OSC bodies whose ESC was already lost, e.g. "]654;prompt BEL"
	bareOSCPattern = regexp.MustCompile(`\]\d+;[^\x07\n]*\x07`)

	blankRunPattern = regexp.MustCompile(`\n{3,}`)

	promptPattern   = regexp.MustCompile(`([^\s\-=<>|])[ \t]+(>[ \t])`)
	errorPattern    = regexp.MustCompile(`(\S)[ \t]+((?i:error|failed|warning):)`)
	framePattern    = regexp.MustCompile(`(\S)[ \t]+(at (?:async )?(?:[^\s()]+ \(|(?:file://|node:|/)\S*:\d+))`)
	spaceRunPattern = regexp.MustCompile(` {2,}`)
	labelPattern    = regexp.MustCompile(`:[ \t]+(\S)`)
)

// maxPasses bounds the fixed-point loop; well-formed input settles in one or two
const maxPasses = 8

// Sanitize cleans raw terminal output. Removing one sequence can expose
// another (a stray ESC in front of a bare OSC body), so the pipeline runs
// until the text stops changing.
func Sanitize(raw string) string {
	s := raw
	for i := 0; i < maxPasses; i++ {
		next := pass(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func pass(s string) string {
	s = stripEscapes(s)
	s = normalizeNewlines(s)
	s = splitStructural(s)
	s = trimLines(s)
	return squeeze(s)
}

// stripEscapes removes CSI, OSC, DCS and two-byte escapes with the x/ansi
// parser, then OSC bodies that lost their ESC and any ESC left over
func stripEscapes(s string) string {
	s = ansi.Strip(s)
	s = bareOSCPattern.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "\x1b", "")
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return blankRunPattern.ReplaceAllString(s, "\n\n")
}

// splitStructural moves prompts, error labels and stack frames that share a
// line with earlier text onto a line of their own. The token must follow
// whitespace, so paths like /var/error: and words like "data:" stay intact.
func splitStructural(s string) string {
	s = promptPattern.ReplaceAllString(s, "$1\n$2")
	s = errorPattern.ReplaceAllString(s, "$1\n$2")
	return framePattern.ReplaceAllString(s, "$1\n$2")
}

func trimLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func squeeze(s string) string {
	s = spaceRunPattern.ReplaceAllString(s, " ")
	s = labelPattern.ReplaceAllString(s, ": $1")
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
