package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func testEvent() Event {
	return Event{
		Type:        EventCompleted,
		SessionID:   "s1",
		CandidateID: "candidate_1_1234",
		Name:        "Jane Doe",
		Position:    "Backend Engineer",
		Experience:  "4",
		Level:       "intermediate",
		MatchScore:  82,
		OccurredAt:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

type fakeChannel struct {
	declared  string
	kind      string
	durable   bool
	exchange  string
	key       string
	msg       amqp.Publishing
	declErr   error
	publishes int
	closed    bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared, f.kind, f.durable = name, kind, durable
	return f.declErr
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	f.publishes++
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

// TestAMQPPublisher verifies the exchange is declared durable and events are
// routed by type as JSON.
func TestAMQPPublisher(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newAMQPPublisher(ch, "")
	if err != nil {
		t.Fatalf("newAMQPPublisher: %v", err)
	}
	if ch.declared != DefaultExchange || ch.kind != "direct" || !ch.durable {
		t.Errorf("declared %q kind=%q durable=%v", ch.declared, ch.kind, ch.durable)
	}

	if err := p.Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if ch.exchange != DefaultExchange || ch.key != EventCompleted {
		t.Errorf("published to %q/%q", ch.exchange, ch.key)
	}
	if ch.msg.ContentType != "application/json" {
		t.Errorf("ContentType = %q", ch.msg.ContentType)
	}
	var got Event
	if err := json.Unmarshal(ch.msg.Body, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != testEvent() {
		t.Errorf("body = %+v", got)
	}

	if err := p.Close(); err != nil || !ch.closed {
		t.Errorf("Close = %v, closed=%v", err, ch.closed)
	}
}

func TestAMQPPublisherDeclareError(t *testing.T) {
	ch := &fakeChannel{declErr: errors.New("access refused")}
	if _, err := newAMQPPublisher(ch, "x"); err == nil || !strings.Contains(err.Error(), "access refused") {
		t.Errorf("err = %v", err)
	}
}

// TestSlackNotifier verifies the summary is posted to the configured channel.
func TestSlackNotifier(t *testing.T) {
	var calls atomic.Int32
	var channel, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/chat.postMessage") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		channel, text = r.FormValue("channel"), r.FormValue("text")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
	}))
	defer srv.Close()

	n := NewSlack("xoxb-test", "C123", srv.URL+"/api/")
	if err := n.Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if channel != "C123" {
		t.Errorf("channel = %q", channel)
	}
	if !strings.Contains(text, "Jane Doe completed screening for Backend Engineer") || !strings.Contains(text, "match 82%") {
		t.Errorf("text = %q", text)
	}
}

func TestSlackNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	err := NewSlack("xoxb-test", "nope", srv.URL+"/api/").Notify(context.Background(), testEvent())
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("err = %v", err)
	}
}

type countingNotifier struct {
	n   int
	err error
}

func (c *countingNotifier) Notify(context.Context, Event) error {
	c.n++
	return c.err
}

func TestMultiJoinsErrors(t *testing.T) {
	errA := errors.New("a down")
	a, b, c := &countingNotifier{err: errA}, &countingNotifier{}, &countingNotifier{}
	err := Multi{a, b, c, Nop{}}.Notify(context.Background(), testEvent())
	if !errors.Is(err, errA) {
		t.Errorf("err = %v, want %v", err, errA)
	}
	if a.n != 1 || b.n != 1 || c.n != 1 {
		t.Errorf("calls = %d %d %d", a.n, b.n, c.n)
	}
	if err := (Multi{}).Notify(context.Background(), testEvent()); err != nil {
		t.Errorf("empty Multi = %v", err)
	}
}

func TestSummaryDefaults(t *testing.T) {
	s := Event{SessionID: "s9", Level: "beginner", Experience: "1"}.Summary()
	if !strings.HasPrefix(s, "A candidate completed screening for an unspecified role") {
		t.Errorf("Summary = %q", s)
	}
}
