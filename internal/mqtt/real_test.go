package mqtt

import (
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/lock-feedback/internal/logic"
)

// doneToken is a publish token that has already completed.
type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// scriptedClient answers IsConnectionOpen from open, repeating the last
// answer, and records publishes. Other paho.Client methods are not used.
type scriptedClient struct {
	paho.Client

	mu     sync.Mutex
	open   []bool
	topics []string
}

func (c *scriptedClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.open[0]
	if len(c.open) > 1 {
		c.open = c.open[1:]
	}
	return v
}

func (c *scriptedClient) Publish(topic string, _ byte, _ bool, _ interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	return doneToken{}
}

func (c *scriptedClient) published() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.topics...)
}

func newScriptedPublisher(open ...bool) (*RealPublisher, *scriptedClient) {
	c := &scriptedClient{open: open}
	return &RealPublisher{client: c, topic: Topic, outbox: newOutbox(10)}, c
}

func TestRealPublisherQueuesWhileDisconnected(t *testing.T) {
	p, c := newScriptedPublisher(false)

	if err := p.Publish(logic.Event{Type: logic.EventRaise}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.PublishSystem(SystemEvent{Event: "HEARTBEAT"}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}
	if n := p.Queued(); n != 2 {
		t.Errorf("Queued() = %d, want 2", n)
	}
	if got := c.published(); len(got) != 0 {
		t.Errorf("published %v while disconnected", got)
	}
}

func TestRealPublisherReplaysOnConnect(t *testing.T) {
	p, c := newScriptedPublisher(false)
	p.Publish(logic.Event{Type: logic.EventRaise})
	p.PublishSystem(SystemEvent{Event: "HEARTBEAT"})

	p.onConnect(c)

	got := c.published()
	if len(got) != 2 || got[0] != Topic || got[1] != TopicSystem {
		t.Errorf("replayed %v, want [%s %s]", got, Topic, TopicSystem)
	}
	if n := p.Queued(); n != 0 {
		t.Errorf("Queued() = %d after replay, want 0", n)
	}
}

// The connection comes up after send sees it closed but before the message
// is queued, so the connect handler finds nothing to replay.
func TestRealPublisherSendsMessageQueuedDuringConnect(t *testing.T) {
	p, c := newScriptedPublisher(false, true)

	if err := p.Publish(logic.Event{Type: logic.EventLower}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if got := c.published(); len(got) != 1 || got[0] != Topic {
		t.Errorf("published %v, want [%s]", got, Topic)
	}
	if n := p.Queued(); n != 0 {
		t.Errorf("Queued() = %d, want 0", n)
	}
}

func TestRealPublisherPublishesWhenConnected(t *testing.T) {
	p, c := newScriptedPublisher(true)

	if err := p.Publish(logic.Event{Type: logic.EventRaise}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := c.published(); len(got) != 1 {
		t.Errorf("published %v, want one message", got)
	}
	if n := p.Queued(); n != 0 {
		t.Errorf("Queued() = %d, want 0", n)
	}
}
