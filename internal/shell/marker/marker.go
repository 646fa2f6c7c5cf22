package marker

import (
	"bytes"
	"fmt"
	"strconv"
)

const (
	// ESC is the escape byte that opens every marker
	ESC byte = 0x1b
	// BEL terminates a marker
	BEL byte = 0x07

	// Code is the OSC number reserved for the shell bridge
	Code = 654
)

// Prefix is the fixed opening of every marker: ESC ] 654 ;
var Prefix = []byte("\x1b]654;")

// maxPayload bounds how far past Prefix a terminator is searched for.
// The longest legal payload is "exit=-9223372036854775808:9223372036854775807".
const maxPayload = 64

// MaxLen is the longest byte run a single marker can span
var MaxLen = len(Prefix) + maxPayload + 1

// Kind identifies a marker
type Kind int

const (
	KindUnknown Kind = iota
	KindInteractive
	KindPrompt
	KindExit
)

// String returns the wire name of the kind
func (k Kind) String() string {
	switch k {
	case KindInteractive:
		return "interactive"
	case KindPrompt:
		return "prompt"
	case KindExit:
		return "exit"
	default:
		return "unknown"
	}
}

// ParseKind maps a wire name to its Kind
func ParseKind(name string) Kind {
	switch name {
	case "interactive":
		return KindInteractive
	case "prompt":
		return KindPrompt
	case "exit":
		return KindExit
	default:
		return KindUnknown
	}
}

// Marker is one parsed control event
type Marker struct {
	Kind Kind
	// Code is the exit status carried by exit markers
	Code int
	// Extra is the second payload integer, when present
	Extra int
}

// Encode renders a marker in wire format
func Encode(m Marker) []byte {
	if m.Kind == KindExit {
		return []byte(fmt.Sprintf("\x1b]%d;%s=%d:%d\x07", Code, m.Kind, m.Code, m.Extra))
	}
	return []byte(fmt.Sprintf("\x1b]%d;%s\x07", Code, m.Kind))
}

// ParsePayload decodes the bytes between Prefix and BEL.
// Numeric fields that fail to parse fall back to 0.
func ParsePayload(payload []byte) Marker {
	name, args, hasArgs := bytes.Cut(payload, []byte("="))
	m := Marker{Kind: ParseKind(string(name))}
	if !hasArgs {
		return m
	}

	first, second, _ := bytes.Cut(args, []byte(":"))
	m.Code = atoiOrZero(first)
	m.Extra = atoiOrZero(second)
	return m
}

func atoiOrZero(b []byte) int {
	n, err := strconv.Atoi(string(bytes.TrimSpace(b)))
	if err != nil {
		return 0
	}
	return n
}
