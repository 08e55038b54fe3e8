package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alcazar-iot/yeti-audio-agent/internal/types"
	"github.com/alcazar-iot/yeti-audio-agent/internal/util"
)

// wireMessage mirrors the C2 bus wire shape described in the Glossary:
// messageType/messageSubtype/messageBody.commandDetail/messageId, plus the
// readiness and alert payloads this agent sends.
type wireMessage struct {
	MessageType    string          `json:"messageType"`
	MessageSubtype string          `json:"messageSubtype"`
	MessageID      string          `json:"messageId,omitempty"`
	TargetID       string          `json:"targetId,omitempty"`
	MessageBody    wireMessageBody `json:"messageBody"`
}

type wireMessageBody struct {
	CommandDetail *wireCommandDetail `json:"commandDetail,omitempty"`
	Alert         *wireAlert         `json:"alert,omitempty"`
	Ready         *bool              `json:"ready,omitempty"`
}

type wireCommandDetail struct {
	Command string `json:"command"`
	Value   string `json:"value"`
}

type wireAlert struct {
	Severity   int            `json:"severity"`
	Confidence int            `json:"confidence"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Details    map[string]any `json:"details,omitempty"`
	RefID      string         `json:"refId,omitempty"`
}

// WSBus implements Bus over a client websocket connection to the external
// command-and-control bus; the Subscribe read loop reconnects with
// exponential backoff.
type WSBus struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn

	// writeMu serializes WriteJSON calls: gorilla forbids concurrent writers
	// on one connection, and SendAlert/SetReady can both fire from
	// different stages at once.
	writeMu sync.Mutex
}

// NewWSBus constructs a bus client. It does not connect until Subscribe,
// SendAlert or SetReady is first called.
func NewWSBus(url string) *WSBus {
	return &WSBus{url: url}
}

func (b *WSBus) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return b.conn, nil
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return nil, util.WrapError("dial bus", err)
	}
	b.conn = conn
	return conn, nil
}

func (b *WSBus) dropConn() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

// Subscribe runs a reconnect-with-backoff read loop in the background and
// streams decoded control messages targeted at the Microphone subtype.
func (b *WSBus) Subscribe(ctx context.Context) (<-chan ControlMessage, error) {
	out := make(chan ControlMessage)
	go b.readLoop(ctx, out)
	return out, nil
}

func (b *WSBus) readLoop(ctx context.Context, out chan<- ControlMessage) {
	defer close(out)
	backoff := util.NewBackoff(types.InitialRetryDelay, types.MaxRetryDelay)

	for ctx.Err() == nil {
		conn, err := b.ensureConn(ctx)
		if err != nil {
			slog.Warn("bus: connect failed, retrying", "error", err)
			if !sleepCtx(ctx, backoff.Next()) {
				return
			}
			continue
		}
		backoff.Reset(types.InitialRetryDelay)

		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			slog.Warn("bus: read failed, reconnecting", "error", err)
			b.dropConn()
			continue
		}
		if msg.MessageSubtype != "Microphone" || msg.MessageBody.CommandDetail == nil {
			continue
		}

		select {
		case out <- ControlMessage{
			ID:       msg.MessageID,
			Subtype:  msg.MessageSubtype,
			TargetID: msg.TargetID,
			Command:  msg.MessageBody.CommandDetail.Command,
			Value:    msg.MessageBody.CommandDetail.Value,
		}:
		case <-ctx.Done():
			return
		}
	}
}

// SendAlert publishes an alert over the bus connection, (re)dialing if
// needed.
func (b *WSBus) SendAlert(alert Alert) error {
	conn, err := b.ensureConn(context.Background())
	if err != nil {
		return err
	}

	var msg wireMessage
	msg.MessageType = "Alert"
	msg.MessageSubtype = alert.Subtype
	msg.MessageBody.Alert = &wireAlert{
		Severity:   alert.Severity,
		Confidence: alert.Confidence,
		Title:      alert.Title,
		Text:       alert.Text,
		Details:    alert.Details,
		RefID:      alert.RefID,
	}

	b.writeMu.Lock()
	err = conn.WriteJSON(msg)
	b.writeMu.Unlock()
	if err != nil {
		b.dropConn()
		return util.WrapError("send alert", err)
	}
	return nil
}

// SetReady announces overall readiness. Failures are logged, not returned:
// readiness is best-effort status, never load-bearing for the agent's own
// operation.
func (b *WSBus) SetReady(ready bool) {
	conn, err := b.ensureConn(context.Background())
	if err != nil {
		slog.Warn("bus: set ready failed to connect", "error", err)
		return
	}
	var msg wireMessage
	msg.MessageType = "Ready"
	msg.MessageBody.Ready = &ready

	b.writeMu.Lock()
	err = conn.WriteJSON(msg)
	b.writeMu.Unlock()
	if err != nil {
		slog.Warn("bus: set ready write failed", "error", err)
		b.dropConn()
	}
}

// Close releases the underlying connection, if any.
func (b *WSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
