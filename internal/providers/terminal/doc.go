// Package terminal bridges a user-facing terminal and a sandboxed shell.
//
// A Session spawns the shell on a PTY with the marker protocol enabled and
// tees its output to three independent readers:
//   - render: the live terminal view plus a scrollback ring for repaint
//   - capture: marker-synchronized command output for the Coordinator
//   - watch: a URLWatcher publishing the latest URL into a DetectedURL slot
//
// Keystrokes from an attached terminal go through an Interceptor, which
// diverts curl and fetch lines to the Coordinator and forwards everything
// else. Bracketed paste delimiters are dropped so pasted lines are tracked
// like typed ones.
//
// The Coordinator runs one command per session at a time: a new request
// cancels the active one, interrupts the shell, waits for a fresh prompt,
// types the command and collects output up to its exit marker, minus the
// echoed command line.
//
// Tools:
//   - terminal.create_session: start a shell and wait until it is interactive
//   - terminal.execute: run a command and return sanitized output and exit code
//   - terminal.cancel: cancel the active execution
//   - terminal.write: send raw input
//   - terminal.scrollback: read recent rendered output
//   - terminal.resize: resize the terminal
//   - terminal.list_sessions, terminal.get_session: inspect sessions
//   - terminal.kill: terminate a session
//   - terminal.detected_url: read the detected URL slot
package terminal
