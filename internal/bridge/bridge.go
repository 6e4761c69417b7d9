package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sceneforge/internal/logging"
	"sceneforge/internal/observability"
)

// Wire event types exchanged with rendering clients.
const (
	EventRequestScreenshot      = "request_screenshot"
	EventProvideScreenshot      = "provide_screenshot"
	EventProvideScreenshotError = "provide_screenshot_error"
	EventPing                   = "ping"
	EventPong                   = "pong"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultPingInterval   = 25 * time.Second
)

// Event is the JSON envelope for every bridge message in both directions.
type Event struct {
	Type       string `json:"type"`
	RequestID  string `json:"requestId,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
}

// Config configures a Bridge.
type Config struct {
	// RequestTimeout is the hard deadline for one screenshot round trip.
	RequestTimeout time.Duration
	// PingInterval is how often liveness pings are sent to each client.
	PingInterval time.Duration
	// Logger receives connection and resolution logs; nil means silent.
	Logger logging.Logger
	// Metrics receives timeout counts; nil disables reporting.
	Metrics *observability.Metrics
}

// resolution is the outcome delivered to a waiting screenshot request.
type resolution struct {
	image  string
	errMsg string
}

// pendingRequest tracks one in-flight screenshot request. The record lives in
// the pending table from creation until exactly one settle call removes it.
type pendingRequest struct {
	clientID  string // non-empty when the request is pinned to one client
	createdAt time.Time
	timer     *time.Timer
	result    chan resolution // buffered, capacity 1
}

// Bridge asks connected rendering clients for screenshots and awaits their
// replies under a deadline. Every resolution path — matching reply, explicit
// error event, timeout, pinned-client loss, shutdown — funnels through one
// remove-and-resolve step, so a request id is settled at most once.
type Bridge struct {
	timeout      time.Duration
	pingInterval time.Duration
	logger       logging.Logger
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[string]*client

	pendingMu sync.Mutex
	pending   map[string]*pendingRequest
}

type client struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

func (c *client) send(event Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(event)
}

// New builds a Bridge from config, filling zero values with defaults.
func New(config Config) *Bridge {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaultRequestTimeout
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaultPingInterval
	}
	return &Bridge{
		timeout:      config.RequestTimeout,
		pingInterval: config.PingInterval,
		logger:       logging.OrNop(config.Logger),
		metrics:      config.Metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
		pending: make(map[string]*pendingRequest),
	}
}

// ServeHTTP upgrades the request to a websocket and serves it until the
// client disconnects. Mount it on the bridge route of the HTTP server.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed: %v", err)
		return
	}
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		done: make(chan struct{}),
	}
	b.register(c)
	go b.pingLoop(c)
	go b.readLoop(c)
}

// ClientCount reports how many clients are connected.
func (b *Bridge) ClientCount() int {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	return len(b.clients)
}

// PendingCount reports how many screenshot requests are awaiting resolution.
func (b *Bridge) PendingCount() int {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	return len(b.pending)
}

// RequestScreenshot broadcasts a screenshot request to all connected clients
// and waits for the first reply. It returns the empty string immediately when
// no client is connected, and the empty string on timeout or client-reported
// error. The only error returned is the caller's context expiring first.
func (b *Bridge) RequestScreenshot(ctx context.Context) (string, error) {
	return b.request(ctx, "")
}

// RequestScreenshotFrom unicasts the request to one specific client.
func (b *Bridge) RequestScreenshotFrom(ctx context.Context, clientID string) (string, error) {
	return b.request(ctx, clientID)
}

func (b *Bridge) request(ctx context.Context, clientID string) (string, error) {
	if b.ClientCount() == 0 {
		b.logger.Debug("screenshot requested with no connected client")
		return "", nil
	}

	requestID := uuid.NewString()
	p := &pendingRequest{
		clientID:  clientID,
		createdAt: time.Now(),
		result:    make(chan resolution, 1),
	}
	b.pendingMu.Lock()
	p.timer = time.AfterFunc(b.timeout, func() { b.expire(requestID) })
	b.pending[requestID] = p
	b.pendingMu.Unlock()

	event := Event{
		Type:      EventRequestScreenshot,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}
	var sendErr error
	if clientID != "" {
		sendErr = b.sendTo(clientID, event)
	} else {
		sendErr = b.broadcast(event)
	}
	if sendErr != nil {
		b.logger.Warn("screenshot request %s not delivered: %v", requestID, sendErr)
		b.settle(requestID, resolution{})
	}

	select {
	case res := <-p.result:
		if res.errMsg != "" {
			b.logger.Warn("screenshot request %s failed on client: %s", requestID, res.errMsg)
			return "", nil
		}
		return res.image, nil
	case <-ctx.Done():
		b.settle(requestID, resolution{})
		return "", ctx.Err()
	}
}

// settle is the single remove-and-resolve step. The first caller for a given
// id wins; it returns false when the id was already settled (or unknown), so
// duplicate replies are structurally no-ops.
func (b *Bridge) settle(requestID string, res resolution) bool {
	b.pendingMu.Lock()
	p, ok := b.pending[requestID]
	delete(b.pending, requestID)
	b.pendingMu.Unlock()
	if !ok {
		return false
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.result <- res
	return true
}

func (b *Bridge) expire(requestID string) {
	if b.settle(requestID, resolution{}) {
		b.metrics.IncBridgeTimeout()
		b.logger.Warn("screenshot request %s timed out after %s", requestID, b.timeout)
	}
}

// Close disconnects every client and settles all pending requests with an
// empty result so no caller is left waiting.
func (b *Bridge) Close() {
	b.pendingMu.Lock()
	ids := make([]string, 0, len(b.pending))
	for id := range b.pending {
		ids = append(ids, id)
	}
	b.pendingMu.Unlock()
	for _, id := range ids {
		b.settle(id, resolution{})
	}

	b.clientsMu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[string]*client)
	b.clientsMu.Unlock()
	for _, c := range clients {
		c.once.Do(func() { close(c.done) })
		_ = c.conn.Close()
	}
}

func (b *Bridge) register(c *client) {
	b.clientsMu.Lock()
	b.clients[c.id] = c
	total := len(b.clients)
	b.clientsMu.Unlock()
	b.logger.Info("rendering client %s connected (%d total)", c.id, total)
}

func (b *Bridge) unregister(c *client) {
	b.clientsMu.Lock()
	_, present := b.clients[c.id]
	delete(b.clients, c.id)
	total := len(b.clients)
	b.clientsMu.Unlock()

	c.once.Do(func() { close(c.done) })
	_ = c.conn.Close()
	if !present {
		return
	}
	b.logger.Info("rendering client %s disconnected (%d remaining)", c.id, total)
	b.failPinned(c.id)
}

// failPinned settles every request pinned to the lost client: nothing else
// can answer them, so waiting out the deadline would only stall the caller.
func (b *Bridge) failPinned(clientID string) {
	b.pendingMu.Lock()
	var ids []string
	for id, p := range b.pending {
		if p.clientID == clientID {
			ids = append(ids, id)
		}
	}
	b.pendingMu.Unlock()
	for _, id := range ids {
		if b.settle(id, resolution{errMsg: "client disconnected"}) {
			b.logger.Warn("screenshot request %s abandoned: pinned client %s disconnected", id, clientID)
		}
	}
}

func (b *Bridge) readLoop(c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		b.handleEvent(c, data)
	}
	b.unregister(c)
}

func (b *Bridge) handleEvent(c *client, data []byte) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		b.logger.Debug("discarding malformed event from client %s: %v", c.id, err)
		return
	}
	switch event.Type {
	case EventProvideScreenshot:
		if b.settle(event.RequestID, resolution{image: event.Screenshot}) {
			b.logger.Debug("screenshot request %s resolved by client %s", event.RequestID, c.id)
		} else {
			b.logger.Debug("duplicate screenshot reply for %s ignored", event.RequestID)
		}
	case EventProvideScreenshotError:
		if !b.settle(event.RequestID, resolution{errMsg: event.Error}) {
			b.logger.Debug("late screenshot error for %s ignored", event.RequestID)
		}
	case EventPong:
		// Liveness only.
	case EventPing:
		_ = c.send(Event{Type: EventPong, Timestamp: time.Now().UnixMilli()})
	default:
		b.logger.Debug("ignoring unknown event type %q from client %s", event.Type, c.id)
	}
}

func (b *Bridge) pingLoop(c *client) {
	ticker := time.NewTicker(b.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.send(Event{Type: EventPing, Timestamp: time.Now().UnixMilli()}); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (b *Bridge) broadcast(event Event) error {
	b.clientsMu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.clientsMu.RUnlock()
	if len(clients) == 0 {
		return errors.New("no connected clients")
	}
	delivered := 0
	for _, c := range clients {
		if err := c.send(event); err != nil {
			b.logger.Warn("send to client %s failed: %v", c.id, err)
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return errors.New("broadcast reached no client")
	}
	return nil
}

func (b *Bridge) sendTo(clientID string, event Event) error {
	b.clientsMu.RLock()
	c, ok := b.clients[clientID]
	b.clientsMu.RUnlock()
	if !ok {
		return errors.New("client not connected")
	}
	return c.send(event)
}

// ClientIDs returns the ids of all connected clients.
func (b *Bridge) ClientIDs() []string {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	ids := make([]string, 0, len(b.clients))
	for id := range b.clients {
		ids = append(ids, id)
	}
	return ids
}
