// Package message defines the control-channel wire protocol: a tagged
// Message variant framed as a decimal byte-length line followed by that
// many bytes of newline-terminated UTF-8 JSON.
package message

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/voidiz/seedmirror/internal/errkind"
)

// Kind discriminates the three Message variants over the "message" field.
type Kind string

const (
	KindConnectionRequest Kind = "ConnectionRequest"
	KindConnected         Kind = "Connected"
	KindFileUpdated       Kind = "FileUpdated"
)

// Message is the tagged union carried over the control channel. Exactly
// one of the payload fields is meaningful, selected by Kind.
type Message struct {
	Kind Kind `json:"message"`

	// ConnectionRequest payload.
	WatchedPaths []string `json:"watched_paths,omitempty"`

	// FileUpdated payload.
	Path string `json:"path,omitempty"`
}

// ConnectionRequest builds the client's first frame.
func ConnectionRequest(watchedPaths []string) Message {
	return Message{Kind: KindConnectionRequest, WatchedPaths: watchedPaths}
}

// Connected builds the server's acknowledgement frame.
func Connected() Message {
	return Message{Kind: KindConnected}
}

// FileUpdated builds a change notification for path.
func FileUpdated(path string) Message {
	return Message{Kind: KindFileUpdated, Path: path}
}

// Write encodes m using the length-prefixed framing and writes it to w.
// Per spec, a write failing with a broken-pipe-shaped error is reported
// back to the caller so it can downgrade to clean termination; Write
// itself does not interpret the error.
func Write(w io.Writer, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return errkind.New(errkind.Framing, "marshal message", err)
	}
	body = append(body, '\n')

	payload := fmt.Sprintf("%d\n%s", len(body), body)
	if _, err := io.WriteString(w, payload); err != nil {
		return errkind.New(errkind.SocketIO, "write message", err)
	}
	return nil
}

// Read decodes one Message from r using the symmetric framing: a decimal
// length line, then exactly that many bytes of JSON.
func Read(r *bufio.Reader) (Message, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		// A short/truncated length line is a framing problem, not a
		// transport one: the peer is still there, its byte stream just
		// doesn't parse as this protocol expects.
		return Message{}, errkind.New(errkind.Framing, "read length line", err)
	}

	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return Message{}, errkind.New(errkind.Framing, "parse length line", err)
	}
	if n < 0 {
		return Message{}, errkind.New(errkind.Framing, "parse length line", fmt.Errorf("negative length %d", n))
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Message{}, errkind.New(errkind.Framing, "read payload", err)
	}

	var m Message
	if err := json.Unmarshal(buf, &m); err != nil {
		return Message{}, errkind.New(errkind.Framing, "unmarshal message", err)
	}
	return m, nil
}
