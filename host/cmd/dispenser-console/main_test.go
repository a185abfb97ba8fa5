package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"dispenser/host/link"
)

type fakeExchanger struct {
	sent []string
}

func (f *fakeExchanger) Do(ctx context.Context, line string) ([]string, error) {
	f.sent = append(f.sent, line)
	switch line {
	case "list pos":
		return []string{"0: (1, 2, 3) 1000ms"}, nil
	case "bogus":
		return nil, link.ErrParseFail
	case "goto x1":
		return nil, errors.New("device gone")
	}
	return nil, nil
}

func TestReplSendsLines(t *testing.T) {
	in := strings.NewReader("  list pos \n\nbogus\ngoto x1\nstop\nquit\nhome\n")
	var prompts, out bytes.Buffer
	editor := newScannerEditor(in, &prompts)
	client := &fakeExchanger{}

	if err := repl(editor, client, &out, time.Second); err != nil {
		t.Fatalf("repl failed: %v", err)
	}

	want := []string{"list pos", "bogus", "goto x1", "stop"}
	if strings.Join(client.sent, "|") != strings.Join(want, "|") {
		t.Errorf("Expected %v sent, got %v", want, client.sent)
	}

	got := out.String()
	for _, s := range []string{"0: (1, 2, 3) 1000ms\nok\n", "parse fail", "error: device gone", "ok\n"} {
		if !strings.Contains(got, s) {
			t.Errorf("Output missing %q:\n%s", s, got)
		}
	}
	if n := strings.Count(prompts.String(), "dispenser> "); n != 6 {
		t.Errorf("Expected 6 prompts, got %d", n)
	}
}

func TestReplEndOfInput(t *testing.T) {
	editor := newScannerEditor(strings.NewReader("status"), io.Discard)
	client := &fakeExchanger{}

	if err := repl(editor, client, io.Discard, time.Second); err != nil {
		t.Fatalf("repl failed: %v", err)
	}
	if len(client.sent) != 1 || client.sent[0] != "status" {
		t.Errorf("Expected status sent, got %v", client.sent)
	}
	if editor.IsInteractive() {
		t.Error("Scanner editor should not be interactive")
	}
	editor.Close()
	editor.Close()
}
