package feed

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/issmimic/iss-telemetry/pkg/config"
)

// Client subscribes to the telemetry push feed over a websocket. The
// connection is owned by a background goroutine that redials with a fixed
// delay whenever it drops; delivery failures for individual updates never
// terminate the subscription.
type Client struct {
	url string
}

// NewClient creates a feed client for the given websocket URL.
func NewClient(url string) *Client {
	return &Client{url: url}
}

// subscribeFrame is the first frame sent on every (re)connection.
type subscribeFrame struct {
	Op    string   `json:"op"`
	Items []string `json:"items"`
}

// updateFrame is one pushed item update.
type updateFrame struct {
	Item   string            `json:"item"`
	Fields map[string]string `json:"fields"`
}

// Subscribe starts the connection loop and returns immediately. The returned
// subscription keeps reconnecting until Unsubscribe is called.
func (c *Client) Subscribe(items []string, fn UpdateFunc) (Subscription, error) {
	sub := &clientSub{
		url:    c.url,
		items:  items,
		fn:     fn,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go sub.run()
	return sub, nil
}

type clientSub struct {
	url   string
	items []string
	fn    UpdateFunc

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	cancel chan struct{}
	done   chan struct{}
}

// Unsubscribe stops the connection loop and closes the active connection.
func (s *clientSub) Unsubscribe() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.cancel)
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.mu.Unlock()

	<-s.done
	log.Printf("Feed subscription closed (%d items)", len(s.items))
	return nil
}

func (s *clientSub) canceled() bool {
	select {
	case <-s.cancel:
		return true
	default:
		return false
	}
}

// run owns the connection for the subscription's lifetime.
func (s *clientSub) run() {
	defer close(s.done)

	for {
		if s.canceled() {
			return
		}

		conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
		if err != nil {
			log.Printf("Feed connection to %s failed: %v (retrying in %v)", s.url, err, config.FeedReconnectDelay)
			select {
			case <-s.cancel:
				return
			case <-time.After(config.FeedReconnectDelay):
			}
			continue
		}
		log.Printf("Feed connected: %s", s.url)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conn = conn
		s.mu.Unlock()

		s.serve(conn)
		_ = conn.Close()

		if s.canceled() {
			return
		}
		log.Printf("Feed connection lost, reconnecting in %v", config.FeedReconnectDelay)
		select {
		case <-s.cancel:
			return
		case <-time.After(config.FeedReconnectDelay):
		}
	}
}

// serve subscribes on conn and pumps updates until the connection drops.
func (s *clientSub) serve(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(config.FeedWriteDeadline))
	if err := conn.WriteJSON(subscribeFrame{Op: "subscribe", Items: s.items}); err != nil {
		log.Printf("Feed subscribe failed: %v", err)
		return
	}
	log.Printf("Feed subscribed to %d items", len(s.items))

	// Keepalive pings; pongs extend the read deadline.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(config.FeedPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(config.FeedWriteDeadline))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(config.FeedReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(config.FeedReadDeadline))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !s.canceled() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Feed read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(config.FeedReadDeadline))

		// A malformed update is skipped, not a reason to drop the subscription.
		var frame updateFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("Feed delivered malformed update, skipping: %v", err)
			continue
		}
		if frame.Item == "" {
			log.Printf("Feed delivered update without item name, skipping")
			continue
		}
		s.fn(frame.Item, frame.Fields)
	}
}
