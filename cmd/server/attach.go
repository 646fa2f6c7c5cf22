package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/GriffinCanCode/shellbridge/internal/shared/types"
)

func newAttachCmd() *cobra.Command {
	var (
		addr      string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Attach the local terminal to a bridge session",
		Long:  "attach opens /terminal on a running server. Without --session it starts a new session that ends when you detach.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()
			return attach(ctx, addr, sessionID)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "ws://localhost:8000", "Server base URL")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Existing session id")
	return cmd
}

func terminalURL(addr, sessionID string, cols, rows int) (string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/terminal"

	q := url.Values{}
	if sessionID != "" {
		q.Set("session_id", sessionID)
	} else {
		q.Set("cols", strconv.Itoa(cols))
		q.Set("rows", strconv.Itoa(rows))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func attach(ctx context.Context, addr, sessionID string) error {
	cols, rows := termSize()
	target, err := terminalURL(addr, sessionID, cols, rows)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("attach failed: %s: %s", resp.Status, body)
		}
		return fmt.Errorf("attach failed: %w", err)
	}
	defer conn.Close()

	restore, err := makeStdinRaw()
	if err != nil {
		return err
	}
	defer restore()

	var writeMu sync.Mutex
	send := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(messageType, data)
	}

	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				if send(websocket.BinaryMessage, buf[:n]) != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	resizes := make(chan os.Signal, 4)
	notifyResize(resizes)
	defer signal.Stop(resizes)
	go func() {
		for range resizes {
			c, r := termSize()
			data, err := sonic.Marshal(types.ControlMessage{Type: "resize", Cols: uint16(c), Rows: uint16(r)})
			if err != nil || send(websocket.TextMessage, data) != nil {
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		switch messageType {
		case websocket.BinaryMessage:
			_, _ = os.Stdout.Write(data)
		case websocket.TextMessage:
			printControl(data)
		}
	}
}

// printControl reports server control frames on stderr; the terminal is
// raw, so lines end in CRLF
func printControl(data []byte) {
	var msg struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return
	}
	switch msg.Type {
	case "session":
		fmt.Fprintf(os.Stderr, "[attached to %s]\r\n", msg.SessionID)
	case "error":
		fmt.Fprintf(os.Stderr, "[error: %s]\r\n", msg.Message)
	}
}

func makeStdinRaw() (func(), error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = term.Restore(fd, oldState) }, nil
}

func termSize() (cols, rows int) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 80, 24
	}
	c, r, err := term.GetSize(fd)
	if err != nil || c <= 0 || r <= 0 {
		return 80, 24
	}
	return c, r
}
