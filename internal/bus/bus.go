package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 2 * time.Second

// Bus is a websocket connection to the message hub.
type Bus struct {
	mu   sync.Mutex
	conn *websocket.Conn
	url  string
	from string
}

type Message struct {
	From    string `json:"from"`
	To      string `json:"to,omitempty"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

func Dial(ctx context.Context, wsURL, from string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse bus url: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus: %w", err)
	}

	log.Info("Connected to bus", "url", wsURL)
	return &Bus{conn: conn, url: u.String(), from: from}, nil
}

func (b *Bus) redial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("redial bus: %w", err)
	}

	b.mu.Lock()
	old := b.conn
	b.conn = conn
	b.mu.Unlock()

	old.Close()
	log.Info("Reconnected to bus", "url", b.url)
	return nil
}

func (b *Bus) Write(m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

// Publish sends a broadcast message of the given kind. A failed write
// redials once and retries.
func (b *Bus) Publish(ctx context.Context, kind, content string) error {
	m := &Message{From: b.from, Kind: kind, Content: content}

	err := b.Write(m)
	if err == nil {
		return nil
	}
	log.Debug("Bus write failed", "err", err)

	if rerr := b.redial(ctx); rerr != nil {
		return errors.Join(err, rerr)
	}
	return b.Write(m)
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_ = b.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	return b.conn.Close()
}
