package protocol

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LineHandler executes one assembled command line and returns the response
// payload. A non-nil error means the line failed to parse, unless ctx is
// done, in which case Serve stops without responding.
type LineHandler func(ctx context.Context, line string) (string, error)

// Transport serves the line protocol over a byte stream: one command line
// in, one payload plus a terminal marker out. It never pipelines; the next
// line is only assembled after the previous response has been written.
type Transport struct {
	rw        io.ReadWriter
	handler   LineHandler
	assembler *LineAssembler
	log       *logrus.Entry
	echo      bool

	resetCallback func() // Called when a partial line is dropped at end of stream
}

// NewTransport creates a new Transport instance
func NewTransport(rw io.ReadWriter, handler LineHandler, log *logrus.Entry) *Transport {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Transport{
		rw:        rw,
		handler:   handler,
		assembler: NewLineAssembler(),
		log:       log.WithFields(logrus.Fields{"component": "transport"}),
		echo:      true,
	}
}

// SetEcho enables or disables echoing accepted bytes back to the sender
func (t *Transport) SetEcho(enabled bool) {
	t.echo = enabled
}

// SetResetCallback sets a function called when Serve discards a partial
// line because the stream ended
func (t *Transport) SetResetCallback(cb func()) {
	t.resetCallback = cb
}

// Serve reads from the stream until ctx is cancelled or the stream fails.
// io.EOF ends Serve without error.
func (t *Transport) Serve(ctx context.Context) error {
	buf := make([]byte, MaxLineLength)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := t.rw.Read(buf)
		for _, b := range buf[:n] {
			if werr := t.receive(ctx, b); werr != nil {
				return werr
			}
		}

		if err != nil {
			if t.assembler.Pending() != "" {
				t.assembler.Reset()
				if t.resetCallback != nil {
					t.resetCallback()
				}
			}
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "Transport: Serve(): read failed")
		}
	}
}

// receive processes one incoming byte
func (t *Transport) receive(ctx context.Context, b byte) error {
	echo, line, complete := t.assembler.Feed(b)
	if t.echo && len(echo) > 0 {
		if _, err := t.rw.Write(echo); err != nil {
			return errors.Wrap(err, "Transport: receive(): echo failed")
		}
	}
	if !complete {
		return nil
	}

	t.log.WithFields(logrus.Fields{"line": line}).Debug("line received")
	payload, err := t.handler(ctx, line)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		t.log.WithFields(logrus.Fields{"line": line}).Debugf("parse failed: %v", err)
		return t.respond("", MarkerParseFail)
	}
	return t.respond(payload, MarkerOK)
}

// respond writes the payload lines followed by the terminal marker
func (t *Transport) respond(payload, marker string) error {
	var sb strings.Builder
	sb.WriteString(FormatPayload(payload))
	sb.WriteString(marker)
	sb.WriteString(LineEnd)
	if _, err := io.WriteString(t.rw, sb.String()); err != nil {
		return errors.Wrap(err, "Transport: respond(): write failed")
	}
	return nil
}

// FormatPayload terminates every payload line with CRLF
func FormatPayload(payload string) string {
	payload = strings.TrimRight(payload, "\r\n")
	if payload == "" {
		return ""
	}
	lines := strings.Split(payload, "\n")
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(strings.TrimRight(l, "\r"))
		sb.WriteString(LineEnd)
	}
	return sb.String()
}
