package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/freesat/internal/freesat"
)

func dialEvents(t *testing.T, serverURL, identity string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/api/devices/" + identity + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s): %v", url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event %s: %v", data, err)
	}
	return ev
}

func power(state, target string) *freesat.PowerStatus {
	p := &freesat.PowerStatus{}
	p.Power.State = state
	p.Power.TransitioningTo = target
	return p
}

func TestPowerWatch(t *testing.T) {
	var w powerWatch
	fail := freesat.NewNetworkError(testIdentity, "GET failed", errors.New("timeout"))

	steps := []struct {
		name   string
		status *freesat.PowerStatus
		err    error
		want   string // event type, "" for no event
	}{
		{"first state is always pushed", power("on", ""), nil, EventPower},
		{"same state is suppressed", power("on", ""), nil, ""},
		{"transition is a change", power("on", "standby"), nil, EventPower},
		{"new state", power("standby", ""), nil, EventPower},
		{"failure is pushed", nil, fail, EventError},
		{"repeated failure is suppressed", nil, fail, ""},
		{"recovery re-pushes the state", power("standby", ""), nil, EventPower},
		{"and is then quiet", power("standby", ""), nil, ""},
	}

	for _, step := range steps {
		ev := w.next(testIdentity, step.status, step.err)
		got := ""
		if ev != nil {
			got = ev.Type
			if ev.Identity != testIdentity || ev.Timestamp == "" {
				t.Errorf("%s: event = %+v", step.name, ev)
			}
		}
		if got != step.want {
			t.Errorf("%s: event type = %q, want %q", step.name, got, step.want)
		}
	}
}

func TestEventStream_PushesChangesOnly(t *testing.T) {
	remote := &fakeRemote{powerStates: []string{"on", "on", "on", "standby"}}
	s, ts := newTestServer(t, remote)

	conn := dialEvents(t, ts.URL, testIdentity)

	first := readEvent(t, conn)
	if first.Type != EventPower || first.State != "on" {
		t.Fatalf("first event = %+v, want power on", first)
	}

	second := readEvent(t, conn)
	if second.Type != EventPower || second.State != "standby" {
		t.Fatalf("second event = %+v, want power standby", second)
	}

	remote.mu.Lock()
	calls := remote.powerCalls
	remote.mu.Unlock()
	if calls < 4 {
		t.Errorf("power polled %d times, want at least 4", calls)
	}

	if s.ActiveStreams() != 1 {
		t.Errorf("ActiveStreams() = %d, want 1", s.ActiveStreams())
	}
}

func TestEventStream_PushesErrors(t *testing.T) {
	remote := &fakeRemote{powerErr: freesat.NewNetworkError(testIdentity, "GET failed", errors.New("refused"))}
	_, ts := newTestServer(t, remote)

	conn := dialEvents(t, ts.URL, testIdentity)

	ev := readEvent(t, conn)
	if ev.Type != EventError || ev.Error == "" {
		t.Errorf("event = %+v, want an error event", ev)
	}
}

func TestEventStream_ClosedOnShutdown(t *testing.T) {
	remote := &fakeRemote{powerStates: []string{"on"}}
	s, ts := newTestServer(t, remote)

	conn := dialEvents(t, ts.URL, testIdentity)
	readEvent(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	if n := s.ActiveStreams(); n != 0 {
		t.Errorf("ActiveStreams() after shutdown = %d, want 0", n)
	}
}
