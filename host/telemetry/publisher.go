// Package telemetry publishes controller events to an MQTT broker.
package telemetry

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"dispenser/core"
	"dispenser/standalone"
	"dispenser/standalone/store"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTopic   = "dispenser/events"
	DefaultBacklog = 64
	publishTimeout = 5 * time.Second
)

// Client is the publishing half of mqtt.Client
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Event is the JSON payload of one published message
type Event struct {
	Time     time.Time       `json:"time"`
	Kind     string          `json:"kind"`
	Command  string          `json:"command,omitempty"`
	Mode     string          `json:"mode,omitempty"`
	Index    int             `json:"index,omitempty"`
	Position *store.Position `json:"position,omitempty"`
	Event    string          `json:"event,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Publisher is a standalone.Observer that queues events and publishes them
// from Start. Events are dropped when the backlog is full.
type Publisher struct {
	client  Client
	topic   string
	clock   core.Clock
	log     *logrus.Entry
	events  chan Event
	dropped uint64
}

// NewPublisher creates a publisher on topic/<kind>
func NewPublisher(client Client, topic string, clock core.Clock, log *logrus.Entry) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Publisher{
		client: client,
		topic:  topic,
		clock:  clock,
		log:    log.WithFields(logrus.Fields{"component": "telemetry", "topic": topic}),
		events: make(chan Event, DefaultBacklog),
	}
}

// Dropped returns the number of events discarded on a full backlog
func (p *Publisher) Dropped() uint64 {
	return atomic.LoadUint64(&p.dropped)
}

// Start publishes queued events until ctx is cancelled
func (p *Publisher) Start(ctx context.Context) error {
	p.log.Info("publisher started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info("publisher stopped")
			return nil
		case ev := <-p.events:
			if err := p.publish(ev); err != nil {
				p.log.WithError(err).WithFields(logrus.Fields{"kind": ev.Kind}).Error("publish failed")
			}
		}
	}
}

func (p *Publisher) publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "Telemetry: marshal event")
	}
	topic := p.topic + "/" + ev.Kind
	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.Errorf("Telemetry: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "Telemetry: publish to %s", topic)
	}
	return nil
}

func (p *Publisher) enqueue(ev Event) {
	ev.Time = p.clock.Now()
	select {
	case p.events <- ev:
	default:
		atomic.AddUint64(&p.dropped, 1)
	}
}

func (p *Publisher) CommandHandled(name string) {
	p.enqueue(Event{Kind: "command", Command: name})
}

func (p *Publisher) ModeChanged(mode standalone.Mode) {
	p.enqueue(Event{Kind: "mode", Mode: mode.String()})
}

func (p *Publisher) PositionVisited(index int, pos store.Position) {
	p.enqueue(Event{Kind: "visit", Index: index, Position: &pos})
}

func (p *Publisher) Failure(event string, err error) {
	ev := Event{Kind: "failure", Event: event}
	if err != nil {
		ev.Error = err.Error()
	}
	p.enqueue(ev)
}
