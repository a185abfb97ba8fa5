package link

import (
	"context"
	"net"
	"testing"
	"time"

	"dispenser/core"
	"dispenser/protocol"
	"dispenser/standalone"
	"dispenser/standalone/config"
	"dispenser/standalone/store"

	"github.com/pkg/errors"
)

// serve runs a device-side transport on one end of a pipe and returns a
// client on the other
func serve(t *testing.T, handler protocol.LineHandler, echo bool) *Client {
	t.Helper()
	device, host := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	tr := protocol.NewTransport(device, handler, nil)
	tr.SetEcho(echo)
	done := make(chan struct{})
	go func() {
		defer close(done)
		tr.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		host.Close()
		device.Close()
		<-done
	})

	client := NewClient(host, nil)
	client.SetEcho(echo)
	return client
}

func echoHandler(ctx context.Context, line string) (string, error) {
	switch line {
	case "bad":
		return "", errors.New("parse error")
	case "multi":
		return "first\nsecond", nil
	}
	return "", nil
}

func TestClientDo(t *testing.T) {
	for _, echo := range []bool{true, false} {
		client := serve(t, echoHandler, echo)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		payload, err := client.Do(ctx, "multi")
		if err != nil {
			t.Fatalf("echo=%v: Do failed: %v", echo, err)
		}
		if len(payload) != 2 || payload[0] != "first" || payload[1] != "second" {
			t.Errorf("echo=%v: unexpected payload %q", echo, payload)
		}

		payload, err = client.Do(ctx, "plain")
		if err != nil || len(payload) != 0 {
			t.Errorf("echo=%v: expected empty OK response, got %q %v", echo, payload, err)
		}

		if _, err := client.Do(ctx, "bad"); err != ErrParseFail {
			t.Errorf("echo=%v: expected ErrParseFail, got %v", echo, err)
		}
		cancel()
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		line string
		ok   bool
	}{
		{"goto x1 y-2", true},
		{"step_per_mm x+4", true},
		{"", false},
		{"goto x1.5", false},
		{"list pos\tnow", false},
		{string(make([]byte, 65)), false},
	}

	for _, test := range tests {
		err := Validate(test.line)
		if test.ok && err != nil {
			t.Errorf("%q: unexpected error %v", test.line, err)
		}
		if !test.ok && errors.Cause(err) != ErrLineRejected {
			t.Errorf("%q: expected ErrLineRejected, got %v", test.line, err)
		}
	}
}

func TestClientAgainstController(t *testing.T) {
	gpio := core.NewMemoryGPIO()
	ctrl, err := standalone.NewWithConfig(config.DefaultConfig(), gpio, store.NewMemoryPages(128), core.NewVirtualClock(), nil)
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}

	runCtx, stop := context.WithCancel(context.Background())
	ran := make(chan struct{})
	go func() {
		defer close(ran)
		ctrl.Run(runCtx)
	}()
	defer func() {
		stop()
		<-ran
	}()

	client := serve(t, ctrl.HandleLine, true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, line := range []string{"stop", "add pos x10 y0 z0 500", "add pos x0 y0 z0"} {
		if _, err := client.Do(ctx, line); err != nil {
			t.Fatalf("'%s' failed: %v", line, err)
		}
	}

	payload, err := client.Do(ctx, "LIST POS")
	if err != nil {
		t.Fatalf("list pos failed: %v", err)
	}
	if len(payload) != 2 || payload[0] != "0: (0, 0, 0) 1000ms" || payload[1] != "1: (10, 0, 0) 500ms" {
		t.Errorf("Unexpected list %q", payload)
	}

	if _, err := client.Do(ctx, "add pos x1 y2"); err != ErrParseFail {
		t.Errorf("Expected ErrParseFail for incomplete add pos, got %v", err)
	}
}
