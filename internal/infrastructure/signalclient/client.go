package signalclient

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"liveclass/internal/signal"
	"liveclass/pkg/retry"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config holds everything needed to reach the relay for one room.
type Config struct {
	URL          string // ws:// or wss:// endpoint of the relay
	JoinToken    string
	WriteTimeout time.Duration
	Retry        retry.Config
}

// Client is the websocket side of the signaling channel. One client serves
// one room session; reconnecting means a fresh client.
type Client struct {
	conn    *websocket.Conn
	inbound chan *signal.Envelope

	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once

	logger *zap.SugaredLogger
}

// Dial connects to the relay, retrying transient failures, and starts the
// reader. The returned client satisfies ports.Relay.
func Dial(ctx context.Context, cfg Config, logger *zap.SugaredLogger) (*Client, error) {
	endpoint, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url %q: %w", cfg.URL, err)
	}
	query := endpoint.Query()
	query.Set("token", cfg.JoinToken)
	endpoint.RawQuery = query.Encode()

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	conn, err := retry.RetryWithResult(ctx, cfg.Retry, func() (*websocket.Conn, error) {
		c, _, dialErr := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
		return c, dialErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}

	client := &Client{
		conn:         conn,
		inbound:      make(chan *signal.Envelope, 64),
		writeTimeout: cfg.WriteTimeout,
		logger:       logger,
	}

	conn.SetPingHandler(func(appData string) error {
		client.writeMu.Lock()
		defer client.writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
		return conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	go client.readLoop()

	logger.Infow("connected to relay", "url", cfg.URL)
	return client, nil
}

func (c *Client) Send(ctx context.Context, env *signal.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s: %w", env.Type, err)
	}
	return nil
}

func (c *Client) Receive() <-chan *signal.Envelope {
	return c.inbound
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// readLoop decodes inbound frames until the connection dies, then closes the
// inbound channel so the consumer sees a clean end of stream.
func (c *Client) readLoop() {
	defer close(c.inbound)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warnw("relay connection lost", "error", err)
			}
			return
		}

		env, err := signal.Decode(data)
		if err != nil {
			// One bad frame does not kill the session.
			c.logger.Warnw("discarding malformed relay message", "error", err)
			continue
		}
		c.inbound <- env
	}
}
