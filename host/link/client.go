// Package link is the host side of the line protocol: it sends one
// command line and collects the response up to its terminal marker.
package link

import (
	"bufio"
	"context"
	"io"
	"strings"

	"dispenser/host/serial"
	"dispenser/protocol"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrLineRejected is returned for lines the device would not accept verbatim
	ErrLineRejected = errors.New("line contains bytes the device drops")
	// ErrParseFail is returned when the device answers [Parse fail]
	ErrParseFail = errors.New("device could not parse command")
)

// Client runs request/response exchanges over a byte stream. It is not
// safe for concurrent use; the protocol allows one outstanding command.
type Client struct {
	w    io.Writer
	r    *bufio.Reader
	echo bool
	log  *logrus.Entry
}

// NewClient creates a client expecting the device to echo input
func NewClient(rw io.ReadWriter, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		w:    rw,
		r:    bufio.NewReader(rw),
		echo: true,
		log:  log.WithFields(logrus.Fields{"component": "link"}),
	}
}

// SetEcho tells the client whether the device echoes input lines
func (c *Client) SetEcho(enabled bool) {
	c.echo = enabled
}

// Do sends line and returns the payload lines. A [Parse fail] marker is
// returned as ErrParseFail.
func (c *Client) Do(ctx context.Context, line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if err := Validate(line); err != nil {
		return nil, err
	}

	if _, err := io.WriteString(c.w, line+"\r"); err != nil {
		return nil, errors.Wrap(err, "Link: Do(): write failed")
	}
	c.log.WithFields(logrus.Fields{"line": line}).Debug("sent")

	if c.echo {
		if _, err := c.readLine(ctx); err != nil {
			return nil, errors.Wrap(err, "Link: Do(): echo")
		}
	}

	var payload []string
	for {
		resp, err := c.readLine(ctx)
		if err != nil {
			return payload, errors.Wrap(err, "Link: Do(): response")
		}
		switch resp {
		case protocol.MarkerOK:
			return payload, nil
		case protocol.MarkerParseFail:
			return payload, ErrParseFail
		}
		payload = append(payload, resp)
	}
}

// readLine reads one CRLF-terminated line, retrying read timeouts until
// ctx is done
func (c *Client) readLine(ctx context.Context) (string, error) {
	var sb strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		s, err := c.r.ReadString('\n')
		sb.WriteString(s)
		if err == nil {
			return strings.TrimRight(sb.String(), "\r\n"), nil
		}
		if err != serial.ErrReadTimeout {
			return "", err
		}
	}
}

// Validate checks that every byte of line survives the device's line
// assembly unchanged and that it fits the line buffer
func Validate(line string) error {
	if line == "" {
		return errors.Wrap(ErrLineRejected, "empty line")
	}
	if len(line) > protocol.MaxLineLength {
		return errors.Wrapf(ErrLineRejected, "%d bytes exceeds %d", len(line), protocol.MaxLineLength)
	}
	for i := 0; i < len(line); i++ {
		if !protocol.IsLineByte(line[i]) {
			return errors.Wrapf(ErrLineRejected, "byte 0x%02x at %d", line[i], i)
		}
	}
	return nil
}
