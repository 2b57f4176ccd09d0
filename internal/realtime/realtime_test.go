package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestEventTopics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		event Event
		want  []string
	}{
		{NewEvent(EventRideCreated, "r1", "", nil), []string{TopicDrivers, TopicMap, "ride:r1"}},
		{NewEvent(EventRideUpdated, "r1", "d1", nil), []string{TopicMap, "ride:r1"}},
		{NewEvent(EventDriverLocationsChanged, "", "d1", nil), []string{TopicDrivers, TopicMap}},
		{NewEvent(EventDriverLocationsChanged, "r1", "d1", nil), []string{TopicDrivers, TopicMap, "ride:r1"}},
		{NewEvent(EventChatMessage, "r1", "", nil), []string{"ride:r1"}},
	}

	for _, tt := range tests {
		got := tt.event.Topics()
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("%s ride=%q: expected %v, got %v", tt.event.Type, tt.event.RideID, tt.want, got)
		}
	}
}

func TestNewEventEncodesPayload(t *testing.T) {
	t.Parallel()

	ev := NewEvent(EventRideUpdated, "r1", "d1", map[string]string{"status": "accepted"})
	var payload map[string]string
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	if payload["status"] != "accepted" {
		t.Errorf("unexpected payload %v", payload)
	}

	// Channels cannot be encoded; the event is still usable.
	ev = NewEvent(EventRideUpdated, "r1", "", make(chan int))
	if ev.Payload != nil {
		t.Error("expected unencodable payload to be dropped")
	}
}

// ──────────────────────────────────────────────
// HUB
// ──────────────────────────────────────────────

func TestHub_DeliversOnlyToSubscribers(t *testing.T) {
	t.Parallel()

	hub := NewHub(4)
	drivers := hub.NewClient(nil, []string{TopicDrivers})
	rider := hub.NewClient(nil, []string{RideTopic("r1")})
	other := hub.NewClient(nil, []string{RideTopic("r2")})
	for _, c := range []*Client{drivers, rider, other} {
		hub.AddClient(c)
	}

	if err := hub.Send(context.Background(), NewEvent(EventRideCreated, "r1", "", nil)); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(drivers.Send) != 1 || len(rider.Send) != 1 {
		t.Error("expected drivers and rider to receive the event")
	}
	if len(other.Send) != 0 {
		t.Error("expected unrelated ride subscriber to receive nothing")
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	t.Parallel()

	hub := NewHub(1)
	slow := hub.NewClient(nil, []string{TopicMap})
	hub.AddClient(slow)

	hub.Broadcast([]string{TopicMap}, []byte("first"))
	hub.Broadcast([]string{TopicMap}, []byte("second"))

	if hub.ClientCount() != 0 {
		t.Fatalf("expected slow client removed, %d remain", hub.ClientCount())
	}

	msg, ok := <-slow.Send
	if !ok || string(msg) != "first" {
		t.Errorf("expected queued message before close, got %q %v", msg, ok)
	}
	if _, ok := <-slow.Send; ok {
		t.Error("expected send queue closed")
	}

	// Removing twice is harmless.
	hub.RemoveClient(slow)
}

func TestHub_WebsocketEndToEnd(t *testing.T) {
	t.Parallel()

	hub := NewHub(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, strings.Split(r.URL.Query().Get("topics"), ","))
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?topics=ride:r1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Send(context.Background(), NewEvent(EventRideUpdated, "r1", "d1", map[string]string{"status": "arriving"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != EventRideUpdated || ev.RideID != "r1" || ev.DriverID != "d1" {
		t.Errorf("unexpected event %+v", ev)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// ──────────────────────────────────────────────
// FANOUT AND AMQP
// ──────────────────────────────────────────────

type recordingSink struct {
	name string
	err  error

	mu     sync.Mutex
	events []Event
	ctxErr error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.ctxErr = ctx.Err()
	return s.err
}

func TestFanout_ContinuesPastFailingSink(t *testing.T) {
	t.Parallel()

	failing := &recordingSink{name: "broken", err: errors.New("unreachable")}
	healthy := &recordingSink{name: "healthy"}
	fanout := NewFanout(failing, healthy)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fanout.Publish(ctx, NewEvent(EventRideCreated, "r1", "", nil))

	if len(failing.events) != 1 || len(healthy.events) != 1 {
		t.Errorf("expected both sinks called, got %d and %d", len(failing.events), len(healthy.events))
	}
	if healthy.ctxErr != nil {
		t.Errorf("expected delivery to ignore caller cancellation, got %v", healthy.ctxErr)
	}
}

type fakeChannel struct {
	mu        sync.Mutex
	exchange  string
	key       string
	msg       amqp.Publishing
	published int
	closed    bool
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchange, c.key, c.msg = exchange, key, msg
	c.published++
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestAMQPPublisher_RoutesByEventType(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{}
	p := &AMQPPublisher{channel: ch, exchange: DefaultExchange}

	if err := p.Send(context.Background(), NewEvent(EventDriverLocationsChanged, "", "d1", nil)); err != nil {
		t.Fatalf("send: %v", err)
	}

	if ch.exchange != "ride_events" || ch.key != "driver.locations.changed" {
		t.Errorf("unexpected routing %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.ContentType != "application/json" || ch.msg.DeliveryMode != amqp.Persistent {
		t.Errorf("unexpected message properties %+v", ch.msg)
	}
	var ev Event
	if err := json.Unmarshal(ch.msg.Body, &ev); err != nil || ev.DriverID != "d1" {
		t.Errorf("unexpected body %s", ch.msg.Body)
	}

	if err := p.Close(); err != nil || !ch.closed {
		t.Errorf("expected channel closed, got %v", err)
	}
}

// ──────────────────────────────────────────────
// RIDE CHAT
// ──────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func TestChatRelay_PublishesToRideTopic(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	relay := NewChatRelay(pub)
	hub := NewHub(1)
	rider := hub.NewClient(nil, []string{RideTopic("r1")})

	frame := `{"type":"chat","ride_id":"r1","sender_id":"rider-1","content":"  I'm by the metro exit  "}`
	if err := relay.Handle(context.Background(), rider, []byte(frame)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Type != EventChatMessage || ev.RideID != "r1" {
		t.Errorf("unexpected event %+v", ev)
	}
	var msg ChatMessage
	if err := json.Unmarshal(ev.Payload, &msg); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if msg.Content != "I'm by the metro exit" || msg.SenderID != "rider-1" || msg.ID == "" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestChatRelay_Rejections(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	relay := NewChatRelay(pub)
	hub := NewHub(1)
	client := hub.NewClient(nil, []string{RideTopic("r1"), TopicMap})

	tests := []struct {
		name  string
		frame string
		want  error
	}{
		{"not json", `hello`, ErrMalformedFrame},
		{"unknown type", `{"type":"typing","ride_id":"r1","sender_id":"u1","content":"x"}`, ErrMalformedFrame},
		{"missing sender", `{"type":"chat","ride_id":"r1","content":"x"}`, ErrMalformedFrame},
		{"other ride", `{"type":"chat","ride_id":"r2","sender_id":"u1","content":"x"}`, ErrNotSubscribed},
		{"blank", `{"type":"chat","ride_id":"r1","sender_id":"u1","content":"   "}`, ErrEmptyChat},
		{"too long", `{"type":"chat","ride_id":"r1","sender_id":"u1","content":"` + strings.Repeat("я", MaxChatLength+1) + `"}`, ErrChatTooLong},
	}
	for _, tt := range tests {
		if err := relay.Handle(context.Background(), client, []byte(tt.frame)); !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
	if len(pub.events) != 0 {
		t.Errorf("expected nothing published, got %d events", len(pub.events))
	}
}

func TestHub_ChatReachesOtherParticipant(t *testing.T) {
	t.Parallel()

	hub := NewHub(0)
	hub.OnInbound(NewChatRelay(NewFanout(hub)).Handle)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, strings.Split(r.URL.Query().Get("topics"), ","))
	}))
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http")
	rider, _, err := websocket.DefaultDialer.Dial(base+"?topics=ride:r1", nil)
	if err != nil {
		t.Fatalf("dial rider: %v", err)
	}
	defer rider.Close()
	driver, _, err := websocket.DefaultDialer.Dial(base+"?topics=ride:r1,drivers", nil)
	if err != nil {
		t.Fatalf("dial driver: %v", err)
	}
	defer driver.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("clients never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	frame := `{"type":"chat","ride_id":"r1","sender_id":"driver-1","content":"Two minutes away"}`
	if err := driver.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = rider.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := rider.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var msg ChatMessage
	_ = json.Unmarshal(ev.Payload, &msg)
	if ev.Type != EventChatMessage || msg.SenderID != "driver-1" || msg.Content != "Two minutes away" {
		t.Errorf("unexpected chat event %+v %+v", ev, msg)
	}
}
