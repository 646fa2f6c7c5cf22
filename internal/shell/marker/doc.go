// Package marker parses the in-band control markers a shell emits to signal
// command boundaries.
//
// Markers are OSC escape sequences that never reach the screen:
//
//	ESC ] 654 ; <name> [ = <signed-int> : <int> ] BEL
//
// where <name> is one of interactive, prompt or exit. An exit marker carries
// the command's status as its first integer.
//
// The Parser reads a chunked Source and tolerates markers split across
// reads: only a bounded tail that may still complete a marker is held back,
// everything else is accounted to the caller's output immediately.
//
// Degraded completion:
//   - Stream closed before the marker: partial output, Degraded=true, nil error
//   - Deadline expired: partial output, Degraded=true, ErrTimeout
//   - Malformed numeric payload: the number reads as 0
//
// Example Usage:
//
//	p := marker.NewParser(subscription)
//	if _, err := p.AwaitMarker(ctx, marker.KindPrompt); err != nil {
//		return err
//	}
//	shell.Write([]byte("ls\n"))
//	res, err := p.AwaitMarker(ctx, marker.KindExit)
//	fmt.Println(res.ExitCode, res.Output)
package marker
