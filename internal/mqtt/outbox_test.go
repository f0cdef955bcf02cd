package mqtt

import "testing"

func TestOutboxEmptyTake(t *testing.T) {
	o := newOutbox(10)
	msgs, dropped := o.take()
	if msgs != nil || dropped != 0 {
		t.Errorf("expected nothing from empty outbox, got %d msgs, %d dropped", len(msgs), dropped)
	}
}

func TestOutboxAddAndTake(t *testing.T) {
	o := newOutbox(10)
	for i := 0; i < 5; i++ {
		o.add(message{topic: "t", payload: []byte{byte(i)}})
	}

	msgs, dropped := o.take()
	if len(msgs) != 5 || dropped != 0 {
		t.Fatalf("got %d msgs, %d dropped; want 5, 0", len(msgs), dropped)
	}
	for i, m := range msgs {
		if m.payload[0] != byte(i) {
			t.Errorf("msg %d: payload %d", i, m.payload[0])
		}
	}

	if msgs, _ := o.take(); msgs != nil {
		t.Errorf("second take returned %d msgs", len(msgs))
	}
}

func TestOutboxDropsOldest(t *testing.T) {
	o := newOutbox(3)
	for i := 0; i < 7; i++ {
		o.add(message{payload: []byte{byte(i)}})
	}
	if o.len() != 3 {
		t.Fatalf("len = %d, want 3", o.len())
	}

	msgs, dropped := o.take()
	if dropped != 4 {
		t.Errorf("dropped = %d, want 4", dropped)
	}
	for i, want := range []byte{4, 5, 6} {
		if msgs[i].payload[0] != want {
			t.Errorf("msg %d: payload %d, want %d", i, msgs[i].payload[0], want)
		}
	}

	o.add(message{payload: []byte{9}})
	if msgs, dropped := o.take(); len(msgs) != 1 || dropped != 0 {
		t.Errorf("after drain: %d msgs, %d dropped", len(msgs), dropped)
	}
}

func TestOutboxPreservesFields(t *testing.T) {
	o := newOutbox(2)
	o.add(message{topic: TopicSystem, payload: []byte("x"), qos: 1, retained: true})

	msgs, _ := o.take()
	m := msgs[0]
	if m.topic != TopicSystem || string(m.payload) != "x" || m.qos != 1 || !m.retained {
		t.Errorf("fields not preserved: %+v", m)
	}
}

func TestOutboxMinimumLimit(t *testing.T) {
	o := newOutbox(0)
	o.add(message{payload: []byte{1}})
	o.add(message{payload: []byte{2}})
	msgs, dropped := o.take()
	if len(msgs) != 1 || msgs[0].payload[0] != 2 || dropped != 1 {
		t.Errorf("got %+v dropped=%d", msgs, dropped)
	}
}
