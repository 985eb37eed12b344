package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RealtimeClient maintains a websocket connection to Supabase Realtime and
// dispatches row change events to subscribed handlers. The protocol is
// Phoenix channels: join a topic, receive postgres_changes payloads, answer
// heartbeats.
type RealtimeClient struct {
	mu        sync.RWMutex
	url       string
	apiKey    string
	conn      *websocket.Conn
	channels  map[string]*Channel
	handlers  map[string]map[uint64]EventHandler
	handlerID uint64
	done      chan struct{}
	ref       int
}

// EventHandler handles realtime events.
type EventHandler func(event *RealtimeEvent)

// RealtimeEvent is one message on a channel.
type RealtimeEvent struct {
	Type    string         `json:"type"`
	Event   string         `json:"event"`
	Topic   string         `json:"topic"`
	Payload map[string]any `json:"payload"`
	Ref     string         `json:"ref"`
	JoinRef string         `json:"join_ref,omitempty"`
}

// Record decodes the new row carried by an INSERT or UPDATE event into v.
func (e *RealtimeEvent) Record(v any) error {
	record, ok := e.Payload["record"]
	if !ok {
		return fmt.Errorf("event has no record payload")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Channel is one realtime topic. Several subscriptions can share the topic;
// the channel tracks them so phx_join and phx_leave are sent only for the
// first and last subscriber.
type Channel struct {
	client  *RealtimeClient
	topic   string
	joined  bool
	joinRef string
	subs    int
}

// handlerRef identifies one registered handler for later removal.
type handlerRef struct {
	key string
	id  uint64
}

// Subscription is one handler registration on a channel topic. Unsubscribe
// removes the handlers and leaves the topic once no other subscription
// remains on it.
type Subscription struct {
	channel *Channel
	refs    []handlerRef
}

// Unsubscribe detaches this subscription's handlers. The topic is left only
// when the last subscription on it goes away.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	return s.channel.unsubscribe(ctx, s.refs)
}

// NewRealtimeClient creates a realtime client for a project URL.
func NewRealtimeClient(supabaseURL, apiKey string) *RealtimeClient {
	wsURL := supabaseURL
	if strings.HasPrefix(wsURL, "https") {
		wsURL = "wss" + wsURL[5:]
	} else if strings.HasPrefix(wsURL, "http") {
		wsURL = "ws" + wsURL[4:]
	}
	wsURL += "/realtime/v1/websocket?apikey=" + apiKey + "&vsn=1.0.0"

	return &RealtimeClient{
		url:      wsURL,
		apiKey:   apiKey,
		channels: make(map[string]*Channel),
		handlers: make(map[string]map[uint64]EventHandler),
		done:     make(chan struct{}),
	}
}

// Connect establishes the websocket connection and starts the read and
// heartbeat loops. Calling Connect on a connected client is a no-op.
func (r *RealtimeClient) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	r.conn = conn
	r.done = make(chan struct{})

	go r.readLoop()
	go r.heartbeat()

	return nil
}

// Disconnect closes the websocket connection.
func (r *RealtimeClient) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}

	close(r.done)

	err := r.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	r.conn.Close()
	r.conn = nil
	if err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return nil
}

// Channel returns the channel for a topic, creating it if needed.
func (r *RealtimeClient) Channel(topic string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channelLocked(topic)
}

func (r *RealtimeClient) channelLocked(topic string) *Channel {
	if ch, ok := r.channels[topic]; ok {
		return ch
	}

	ch := &Channel{
		client: r,
		topic:  topic,
	}
	r.channels[topic] = ch
	return ch
}

// addHandlerLocked registers a handler under key. Caller holds the mutex.
func (r *RealtimeClient) addHandlerLocked(key string, handler EventHandler) uint64 {
	r.handlerID++
	id := r.handlerID
	if r.handlers[key] == nil {
		r.handlers[key] = make(map[uint64]EventHandler)
	}
	r.handlers[key][id] = handler
	return id
}

// removeHandlersLocked drops the given registrations. Caller holds the mutex.
func (r *RealtimeClient) removeHandlersLocked(refs []handlerRef) {
	for _, ref := range refs {
		m := r.handlers[ref.key]
		if m == nil {
			continue
		}
		delete(m, ref.id)
		if len(m) == 0 {
			delete(r.handlers, ref.key)
		}
	}
}

// joinLocked sends phx_join for the topic if not already joined. Caller
// holds the mutex.
func (c *Channel) joinLocked() error {
	if c.joined {
		return nil
	}
	if c.client.conn == nil {
		return fmt.Errorf("realtime client not connected")
	}

	c.client.ref++
	ref := fmt.Sprintf("%d", c.client.ref)
	c.joinRef = ref

	msg := map[string]any{
		"topic":    c.topic,
		"event":    "phx_join",
		"payload":  map[string]any{},
		"ref":      ref,
		"join_ref": ref,
	}

	if err := c.client.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	c.joined = true
	return nil
}

// unsubscribe removes one subscription's handlers and, when it was the last
// one on the topic, leaves the channel.
func (c *Channel) unsubscribe(ctx context.Context, refs []handlerRef) error {
	c.client.mu.Lock()
	defer c.client.mu.Unlock()

	c.client.removeHandlersLocked(refs)

	if c.subs > 0 {
		c.subs--
	}
	if c.subs > 0 {
		return nil
	}

	delete(c.client.channels, c.topic)
	if !c.joined {
		return nil
	}
	c.joined = false

	if c.client.conn == nil {
		return nil
	}

	c.client.ref++
	msg := map[string]any{
		"topic":    c.topic,
		"event":    "phx_leave",
		"payload":  map[string]any{},
		"ref":      fmt.Sprintf("%d", c.client.ref),
		"join_ref": c.joinRef,
	}

	if err := c.client.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send leave: %w", err)
	}
	return nil
}

// ChangesConfig configures a postgres_changes subscription.
type ChangesConfig struct {
	Event  string // INSERT, UPDATE, DELETE or *
	Schema string
	Table  string
	Filter string // optional, e.g. "id=eq.<uuid>"
}

// SubscribeToChanges subscribes to row changes on a table, optionally
// filtered to specific rows. The returned Subscription must be unsubscribed
// when the caller is done, or its handlers stay registered.
func (r *RealtimeClient) SubscribeToChanges(ctx context.Context, cfg ChangesConfig, handler EventHandler) (*Subscription, error) {
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if cfg.Event == "" {
		cfg.Event = "*"
	}

	topic := fmt.Sprintf("realtime:%s:%s", cfg.Schema, cfg.Table)
	if cfg.Filter != "" {
		topic += ":" + cfg.Filter
	}

	events := []string{cfg.Event}
	if cfg.Event == "*" {
		events = []string{"INSERT", "UPDATE", "DELETE"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ch := r.channelLocked(topic)
	sub := &Subscription{channel: ch}
	for _, ev := range events {
		key := topic + ":" + ev
		sub.refs = append(sub.refs, handlerRef{key: key, id: r.addHandlerLocked(key, handler)})
	}

	if err := ch.joinLocked(); err != nil {
		r.removeHandlersLocked(sub.refs)
		if ch.subs == 0 {
			delete(r.channels, topic)
		}
		return nil, err
	}

	ch.subs++
	return sub, nil
}

func (r *RealtimeClient) readLoop() {
	for {
		select {
		case <-r.done:
			return
		default:
		}

		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var event RealtimeEvent
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}

		r.dispatch(&event)
	}
}

func (r *RealtimeClient) dispatch(event *RealtimeEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	eventType := event.Event
	if t, ok := event.Payload["type"].(string); ok {
		eventType = t
	}

	for _, handler := range r.handlers[event.Topic+":"+eventType] {
		go handler(event)
	}
}

// HandlerCount reports the number of registered handlers.
func (r *RealtimeClient) HandlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, m := range r.handlers {
		n += len(m)
	}
	return n
}

func (r *RealtimeClient) heartbeat() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.conn != nil {
				r.ref++
				msg := map[string]any{
					"topic":   "phoenix",
					"event":   "heartbeat",
					"payload": map[string]any{},
					"ref":     fmt.Sprintf("%d", r.ref),
				}
				r.conn.WriteJSON(msg)
			}
			r.mu.Unlock()
		}
	}
}
