package bus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func TestSubscribeDeliversMicrophoneCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		conn.WriteJSON(wireMessage{
			MessageSubtype: "Microphone",
			MessageID:      "msg-1",
			TargetID:       "mic-0",
			MessageBody: wireMessageBody{
				CommandDetail: &wireCommandDetail{Command: "duration", Value: "15.5"},
			},
		})
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	b := NewWSBus(url)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, err := b.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Command != "duration" || msg.Value != "15.5" {
			t.Errorf("got %+v, want command=duration value=15.5", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for control message")
	}
}

func TestLogBusSubscribeClosesOnCancel(t *testing.T) {
	b := NewLogBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed, got a value")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestLogBusSendAlertAndSetReadyNeverError(t *testing.T) {
	b := NewLogBus()
	if err := b.SendAlert(Alert{Subtype: "Status", Title: "test"}); err != nil {
		t.Errorf("SendAlert: %v", err)
	}
	b.SetReady(true)
}
