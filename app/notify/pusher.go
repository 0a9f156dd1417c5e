// Package notify delivers Copperx deposit notifications to Telegram chats.
// It speaks the Pusher websocket protocol directly: connect, authenticate the
// private organization channel through the Copperx API, then forward deposit
// events until the listener is stopped.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/m3rciful/payoutbot/core/logger"
)

const (
	pusherProtocol = 7
	writeTimeout   = 10 * time.Second
	// readTimeout must exceed Pusher's activity timeout (120s) plus slack.
	readTimeout      = 150 * time.Second
	reconnectMin     = 2 * time.Second
	reconnectMax     = 60 * time.Second
	depositEventName = "deposit"
)

// Config carries the Pusher application credentials.
type Config struct {
	AppKey  string
	Cluster string
}

// Authorizer signs a private-channel subscription. The Copperx API client
// implements it via the notifications auth endpoint.
type Authorizer interface {
	NotificationAuth(ctx context.Context, token, socketID, channel string) (json.RawMessage, error)
}

// DepositEvent is the payload of a deposit notification.
type DepositEvent struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Network  string `json:"network"`
}

// pusherMessage is the envelope of every frame on the wire.
type pusherMessage struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Listener maintains one websocket connection scoped to a chat's organization
// channel. It reconnects with capped backoff until Stop is called.
type Listener struct {
	cfg    Config
	auth   Authorizer
	chatID int64
	token  string
	orgID  string

	onDeposit func(chatID int64, ev DepositEvent)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewListener builds a listener for one authenticated chat.
func NewListener(cfg Config, auth Authorizer, chatID int64, token, orgID string, onDeposit func(int64, DepositEvent)) *Listener {
	return &Listener{
		cfg:       cfg,
		auth:      auth,
		chatID:    chatID,
		token:     token,
		orgID:     orgID,
		onDeposit: onDeposit,
	}
}

// Channel returns the private channel this listener subscribes to.
func (l *Listener) Channel() string {
	return "private-org-" + l.orgID
}

// Start launches the connection loop. Calling Start twice is a no-op.
func (l *Listener) Start(ctx context.Context) {
	if l.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(runCtx)
}

// Stop tears the connection down and waits for the loop to exit.
func (l *Listener) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel = nil
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)

	delay := reconnectMin
	for {
		err := l.connectAndListen(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Notify.LogAttrs(ctx, slog.LevelWarn, "pusher.disconnected",
				slog.String("channel", l.Channel()),
				slog.Int64("chat_id", l.chatID),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay *= 2
		if delay > reconnectMax {
			delay = reconnectMax
		}
	}
}

func (l *Listener) connectAndListen(ctx context.Context) error {
	url := fmt.Sprintf("wss://ws-%s.pusher.com/app/%s?protocol=%d&client=payoutbot&version=1.0",
		l.cfg.Cluster, l.cfg.AppKey, pusherProtocol)

	dialer := websocket.Dialer{HandshakeTimeout: writeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("notify: dial pusher: %w", err)
	}
	defer conn.Close()

	// Close the socket when the listener is cancelled so ReadJSON unblocks.
	closeDone := make(chan struct{})
	defer close(closeDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-closeDone:
		}
	}()

	socketID, err := l.awaitConnectionEstablished(conn)
	if err != nil {
		return err
	}

	if err := l.subscribe(ctx, conn, socketID); err != nil {
		return err
	}

	logger.Notify.LogAttrs(ctx, slog.LevelInfo, "pusher.subscribed",
		slog.String("channel", l.Channel()),
		slog.Int64("chat_id", l.chatID),
	)

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		var msg pusherMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("notify: read: %w", err)
		}
		if err := l.handleMessage(ctx, conn, msg); err != nil {
			return err
		}
	}
}

func (l *Listener) awaitConnectionEstablished(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(writeTimeout))
	var msg pusherMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return "", fmt.Errorf("notify: handshake read: %w", err)
	}
	if msg.Event != "pusher:connection_established" {
		return "", fmt.Errorf("notify: unexpected handshake event %q", msg.Event)
	}

	var data struct {
		SocketID string `json:"socket_id"`
	}
	if err := decodeEventData(msg.Data, &data); err != nil || data.SocketID == "" {
		return "", fmt.Errorf("notify: handshake missing socket_id")
	}
	return data.SocketID, nil
}

func (l *Listener) subscribe(ctx context.Context, conn *websocket.Conn, socketID string) error {
	raw, err := l.auth.NotificationAuth(ctx, l.token, socketID, l.Channel())
	if err != nil {
		return fmt.Errorf("notify: channel auth: %w", err)
	}

	var authResp struct {
		Auth        string `json:"auth"`
		ChannelData string `json:"channel_data,omitempty"`
	}
	if err := json.Unmarshal(raw, &authResp); err != nil || authResp.Auth == "" {
		return fmt.Errorf("notify: malformed channel auth response")
	}

	sub := map[string]any{
		"event": "pusher:subscribe",
		"data": map[string]string{
			"channel": l.Channel(),
			"auth":    authResp.Auth,
		},
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(sub)
}

func (l *Listener) handleMessage(ctx context.Context, conn *websocket.Conn, msg pusherMessage) error {
	switch msg.Event {
	case "pusher:ping":
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(map[string]any{"event": "pusher:pong"})
	case "pusher:error":
		return fmt.Errorf("notify: pusher error: %s", logger.SanitizeLimit(string(msg.Data), 256))
	case depositEventName:
		var ev DepositEvent
		if err := decodeEventData(msg.Data, &ev); err != nil {
			logger.Notify.LogAttrs(ctx, slog.LevelWarn, "pusher.bad_deposit_payload",
				slog.String("channel", l.Channel()),
				slog.String("err", err.Error()),
			)
			return nil
		}
		if l.onDeposit != nil {
			l.onDeposit(l.chatID, ev)
		}
	}
	return nil
}

// decodeEventData handles Pusher's double encoding: event data arrives either
// as a JSON object or as a JSON string containing JSON.
func decodeEventData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty event data")
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return err
		}
		return json.Unmarshal([]byte(inner), v)
	}
	return json.Unmarshal(raw, v)
}
