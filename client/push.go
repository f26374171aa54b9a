package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"realtime-service/internal/models"
)

// PushChannel is the capability interface over the live push transport.
// Events delivers stream frames in arrival order; Errors delivers at most one
// terminal transport error. Close tears the channel down without emitting an
// error.
type PushChannel interface {
	Events() <-chan models.StreamEvent
	Errors() <-chan error
	Close() error
}

// PushDialer opens a push channel for a scope, seeded at the given cursor.
type PushDialer interface {
	Dial(ctx context.Context, scope models.Scope, after string) (PushChannel, error)
}

// WSDialer dials the service's websocket stream endpoint.
type WSDialer struct {
	baseURL string
	token   string
	dialer  *websocket.Dialer
}

// NewWSDialer constructs a WSDialer. baseURL is the service root in http(s)
// form; the scheme is rewritten for the websocket handshake.
func NewWSDialer(baseURL, token string) *WSDialer {
	return &WSDialer{
		baseURL: baseURL,
		token:   token,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (d *WSDialer) Dial(ctx context.Context, scope models.Scope, after string) (PushChannel, error) {
	wsBase := d.baseURL
	switch {
	case strings.HasPrefix(wsBase, "https://"):
		wsBase = "wss://" + strings.TrimPrefix(wsBase, "https://")
	case strings.HasPrefix(wsBase, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(wsBase, "http://")
	}

	endpoint := fmt.Sprintf("%s/ws/scopes/%s?token=%s", wsBase, scope.Key(), url.QueryEscape(d.token))
	if after != "" {
		endpoint += "&after=" + url.QueryEscape(after)
	}

	conn, resp, err := d.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, fmt.Errorf("push dial %s: status %d", scope.Key(), resp.StatusCode)
		}
		return nil, err
	}

	ch := &wsPushChannel{
		conn:   conn,
		events: make(chan models.StreamEvent, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go ch.readLoop()
	return ch, nil
}

type wsPushChannel struct {
	conn      *websocket.Conn
	events    chan models.StreamEvent
	errs      chan error
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsPushChannel) Events() <-chan models.StreamEvent { return c.events }
func (c *wsPushChannel) Errors() <-chan error              { return c.errs }

func (c *wsPushChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

func (c *wsPushChannel) readLoop() {
	defer close(c.events)
	for {
		var event models.StreamEvent
		if err := c.conn.ReadJSON(&event); err != nil {
			select {
			case <-c.done:
				// Deliberate close, not a transport error.
			default:
				c.errs <- err
			}
			return
		}
		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}
