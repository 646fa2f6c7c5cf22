package proxy

import (
	"errors"
	"strings"
)

// ErrUnsupportedCommand is returned for commands outside the allow-list
var ErrUnsupportedCommand = errors.New("unsupported command")

// Kind classifies a submitted command line
type Kind int

const (
	// KindNative lines go to the sandboxed shell
	KindNative Kind = iota
	// KindCurl lines run as an outbound curl-style request
	KindCurl
	// KindFetch lines run as an outbound fetch-style request
	KindFetch
)

// String returns the command name for proxy kinds
func (k Kind) String() string {
	switch k {
	case KindCurl:
		return "curl"
	case KindFetch:
		return "fetch"
	default:
		return "native"
	}
}

// IsProxy reports whether the kind bypasses the shell
func (k Kind) IsProxy() bool {
	return k == KindCurl || k == KindFetch
}

// allowList is the only place proxy command names are defined
var allowList = map[string]Kind{
	"curl":  KindCurl,
	"fetch": KindFetch,
}

// Command is a proxy request derived from a command line
type Command struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// Kind returns the classification of the command name
func (c Command) Kind() Kind {
	if k, ok := allowList[c.Command]; ok {
		return k
	}
	return KindNative
}

// Line renders the command back into a single line
func (c Command) Line() string {
	return strings.Join(append([]string{c.Command}, c.Args...), " ")
}

// Classify tokenizes a command line and decides where it runs
func Classify(line string) (Kind, Command) {
	tokens := Tokenize(line)
	if len(tokens) == 0 {
		return KindNative, Command{}
	}

	cmd := Command{Command: tokens[0], Args: tokens[1:]}
	if cmd.Args == nil {
		cmd.Args = []string{}
	}
	return cmd.Kind(), cmd
}

// Tokenize splits on whitespace. Single or double quotes group a token and
// are removed; there is no escape processing.
func Tokenize(line string) []string {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		inToken bool
	)

	flush := func() {
		if inToken {
			tokens = append(tokens, current.String())
			current.Reset()
			inToken = false
		}
	}

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	flush()
	return tokens
}
