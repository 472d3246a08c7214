package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/portbus/internal/core/comms"
	"github.com/hay-kot/portbus/internal/printer"
)

// readPayload reads a JSON object payload from the first argument, from file, or from
// stdin, in that order. An empty input yields an empty payload.
func readPayload(c *cli.Command, file string, stdin io.Reader) (comms.Payload, error) {
	var raw []byte
	switch {
	case c.NArg() >= 1:
		raw = []byte(c.Args().Get(0))
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		raw = data
	case stdin != nil && !isTerminal(stdin):
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = data
	}

	payload, err := comms.ParsePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	return payload, nil
}

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// anonymousSubscriber names a subscriber for commands run without --as.
func anonymousSubscriber() string {
	return "cli-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// messageWriter prints received messages as colored lines on a terminal and as JSON
// lines (the wire record) otherwise.
type messageWriter struct {
	w      io.Writer
	pretty bool
}

func newMessageWriter(w io.Writer, forceJSON bool) *messageWriter {
	return &messageWriter{w: w, pretty: !forceJSON && isTerminal(w)}
}

func (mw *messageWriter) Write(msg comms.Message) error {
	data, err := comms.Encode(msg)
	if err != nil {
		return err
	}

	if !mw.pretty {
		_, err := fmt.Fprintf(mw.w, "%s\n", data)
		return err
	}

	body, err := json.Marshal(msg.Payload())
	if err != nil {
		return err
	}
	printer.New(mw.w).MessageLine(time.Now(), string(msg.Kind()), msg.MessageType(), comms.SenderOf(msg), string(body))
	return nil
}
