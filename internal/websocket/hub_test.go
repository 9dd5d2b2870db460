package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestBroadcastBalanceOnlyReachesBusiness(t *testing.T) {
	hub := NewHub(nil)
	mine := &Client{send: make(chan []byte, 1)}
	other := &Client{send: make(chan []byte, 1)}
	hub.Register("biz-1", mine)
	hub.Register("biz-2", other)

	hub.BroadcastBalance("biz-1", BalanceUpdate{AccountID: "acc-1", Balance: "0.00", PendingCount: 0})

	select {
	case payload := <-mine.send:
		var update BalanceUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			t.Fatalf("unexpected payload: %v", err)
		}
		if update.AccountID != "acc-1" || update.Balance != "0.00" {
			t.Fatalf("unexpected update: %#v", update)
		}
	default:
		t.Fatal("expected update for biz-1 client")
	}
	select {
	case <-other.send:
		t.Fatal("biz-2 client must not receive biz-1 updates")
	default:
	}
}

func TestBroadcastBalanceDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	client := &Client{send: make(chan []byte, 1)}
	hub.Register("biz-1", client)
	hub.BroadcastBalance("biz-1", BalanceUpdate{AccountID: "a"})
	hub.BroadcastBalance("biz-1", BalanceUpdate{AccountID: "b"})
	if len(client.send) != 1 {
		t.Fatalf("expected one buffered update, got %d", len(client.send))
	}
}

func TestUnregisterRemovesEmptyBusiness(t *testing.T) {
	hub := NewHub(nil)
	client := &Client{send: make(chan []byte, 1)}
	hub.Register("biz-1", client)
	hub.Unregister("biz-1", client)
	hub.Unregister("biz-1", client)
	if hub.connections("biz-1") != 0 {
		t.Fatal("expected no connections")
	}
}

func TestOriginAllowed(t *testing.T) {
	hub := NewHub([]string{"https://app.example.com"})
	if !hub.originAllowed("https://app.example.com") {
		t.Fatal("expected configured origin to be allowed")
	}
	if hub.originAllowed("https://evil.example.com") {
		t.Fatal("expected unknown origin to be rejected")
	}
	if !NewHub([]string{"*"}).originAllowed("https://anything.example.com") {
		t.Fatal("expected wildcard to allow any origin")
	}
}

func TestServeWSDeliversUpdates(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "biz-1")
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.connections("biz-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	hub.BroadcastBalance("biz-1", BalanceUpdate{AccountID: "acc-1", Balance: "12.50", PendingCount: 3})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update BalanceUpdate
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read: %v", err)
	}
	if update.PendingCount != 3 || update.Balance != "12.50" {
		t.Fatalf("unexpected update: %#v", update)
	}
}
