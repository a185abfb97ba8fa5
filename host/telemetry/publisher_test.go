package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"dispenser/core"
	"dispenser/standalone"
	"dispenser/standalone/store"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type message struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu       sync.Mutex
	messages []message
	err      error
	sent     chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{sent: make(chan struct{}, 16)}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	c.messages = append(c.messages, message{topic: topic, qos: qos, payload: payload.([]byte)})
	err := c.err
	c.mu.Unlock()
	c.sent <- struct{}{}
	return newFakeToken(err)
}

func (c *fakeClient) wait(t *testing.T, n int) []message {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.sent:
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for message %d", i+1)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.messages...)
}

func TestPublisherEvents(t *testing.T) {
	client := newFakeClient()
	pub := NewPublisher(client, "gantry", core.NewVirtualClock(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pub.Start(ctx) }()

	pub.CommandHandled("goto")
	pub.ModeChanged(standalone.ModeManual)
	pub.PositionVisited(2, store.Position{X: 10, Y: -5, Z: 3, DurationMS: 750})
	pub.Failure(standalone.EventStoreBackup, errors.New("nak"))

	msgs := client.wait(t, 4)
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Start returned %v", err)
	}

	wantTopics := []string{"gantry/command", "gantry/mode", "gantry/visit", "gantry/failure"}
	for i, want := range wantTopics {
		if msgs[i].topic != want {
			t.Errorf("Message %d: expected topic %q, got %q", i, want, msgs[i].topic)
		}
		if msgs[i].qos != 1 {
			t.Errorf("Message %d: expected qos 1, got %d", i, msgs[i].qos)
		}
	}

	var visit Event
	if err := json.Unmarshal(msgs[2].payload, &visit); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if visit.Index != 2 || visit.Position == nil || *visit.Position != (store.Position{X: 10, Y: -5, Z: 3, DurationMS: 750}) {
		t.Errorf("Unexpected visit event %+v", visit)
	}

	var failure Event
	json.Unmarshal(msgs[3].payload, &failure)
	if failure.Event != standalone.EventStoreBackup || failure.Error != "nak" {
		t.Errorf("Unexpected failure event %+v", failure)
	}
}

func TestPublisherDropsWhenFull(t *testing.T) {
	pub := NewPublisher(newFakeClient(), "", nil, nil)

	for i := 0; i < DefaultBacklog+3; i++ {
		pub.CommandHandled("status")
	}
	if got := pub.Dropped(); got != 3 {
		t.Errorf("Expected 3 dropped events, got %d", got)
	}
	if pub.topic != DefaultTopic {
		t.Errorf("Expected default topic, got %q", pub.topic)
	}
}

func TestPublisherPublishError(t *testing.T) {
	client := newFakeClient()
	client.err = errors.New("not connected")
	pub := NewPublisher(client, "gantry", nil, nil)

	err := pub.publish(Event{Kind: "mode", Mode: "manual"})
	if err == nil {
		t.Fatal("Expected publish error")
	}
}
