package viewer

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/persistence/tables"
	"gridreplay.ai/internal/replay"
	"gridreplay.ai/internal/replay/replaytest"
	"gridreplay.ai/internal/viewerproto"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	root := t.TempDir()
	tb, err := replay.NewParser(game.DefaultRules(), zerolog.Nop()).Parse(77, bytes.NewReader(replaytest.SampleGame(t).Bytes()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := tables.Write(root, tb, "77.jsonl"); err != nil {
		t.Fatalf("write tables: %v", err)
	}
	ts := httptest.NewServer(NewServer(root, zerolog.Nop()).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestBootstrapAndActions(t *testing.T) {
	ts := newTestServer(t)

	var boot viewerproto.BootstrapResponse
	if code := getJSON(t, ts.URL+"/v1/replays/77", &boot); code != http.StatusOK {
		t.Fatalf("bootstrap status %d", code)
	}
	if boot.GridSize != 15 || len(boot.Terrain) != 225 || boot.Snapshots != 10 || !boot.Outcome.Ended {
		t.Fatalf("bootstrap: %+v", boot)
	}

	var all viewerproto.ActionsResponse
	getJSON(t, ts.URL+"/v1/replays/77/actions", &all)
	if len(all.Actions) != 11 || all.Actions[1].Description != "Move 3 soldiers to (3, 2)" {
		t.Fatalf("actions: %+v", all.Actions)
	}
	if tgt := all.Actions[1].Target; tgt == nil || *tgt != [2]int{3, 2} {
		t.Fatalf("target: %v", tgt)
	}

	var round1 viewerproto.ActionsResponse
	getJSON(t, ts.URL+"/v1/replays/77/actions?round=1", &round1)
	if len(round1.Actions) != 5 {
		t.Fatalf("round 1 actions: %d", len(round1.Actions))
	}

	if code := getJSON(t, ts.URL+"/v1/replays/78/actions", nil); code != http.StatusNotFound {
		t.Fatalf("missing replay status %d", code)
	}
	if code := getJSON(t, ts.URL+"/v1/replays/abc", nil); code != http.StatusBadRequest {
		t.Fatalf("bad id status %d", code)
	}
	if code := getJSON(t, ts.URL+"/v1/replays/77/actions?round=x", nil); code != http.StatusBadRequest {
		t.Fatalf("bad round status %d", code)
	}
}

type frame struct {
	Type     string              `json:"type"`
	Action   viewerproto.Action  `json:"action"`
	Snapshot game.Snapshot       `json:"snapshot"`
	Outcome  viewerproto.Outcome `json:"outcome"`
	Message  string              `json:"message"`
}

func TestWebsocketNavigation(t *testing.T) {
	ts := newTestServer(t)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/replays/77/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() frame {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read: %v", err)
		}
		return f
	}
	send := func(msg viewerproto.ControlMsg) {
		t.Helper()
		if msg.ProtocolVersion == "" {
			msg.ProtocolVersion = viewerproto.Version
		}
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	first := read()
	if first.Type != viewerproto.TypeSnapshot || first.Action.Round != 0 || first.Action.ActionIndex != 0 {
		t.Fatalf("first frame: %+v", first.Action)
	}
	if first.Snapshot.Board[2][2].Army != 10 {
		t.Fatalf("initial board: %+v", first.Snapshot.Board[2][2])
	}

	send(viewerproto.ControlMsg{Type: viewerproto.TypeJump, Round: 2, ActionIndex: 0})
	f := read()
	if f.Type != viewerproto.TypeSnapshot || f.Action.Description != "System: Round Settlement" || len(f.Snapshot.Units) != 4 {
		t.Fatalf("jump frame: %+v", f.Action)
	}

	send(viewerproto.ControlMsg{Type: viewerproto.TypeNext})
	if f := read(); f.Type != viewerproto.TypeSnapshot || f.Action.Description != "Nuke at (12, 12)" {
		t.Fatalf("next frame: %+v", f.Action)
	}
	send(viewerproto.ControlMsg{Type: viewerproto.TypeNext})
	if f := read(); f.Type != viewerproto.TypeEnd || !f.Outcome.Ended || f.Outcome.Reason != "elimination" {
		t.Fatalf("end frame: %+v", f)
	}

	send(viewerproto.ControlMsg{Type: viewerproto.TypeJump, Round: 9, ActionIndex: 0})
	if f := read(); f.Type != viewerproto.TypeError || !strings.Contains(f.Message, "key not found") {
		t.Fatalf("error frame: %+v", f)
	}
	send(viewerproto.ControlMsg{Type: "PAUSE"})
	if f := read(); f.Type != viewerproto.TypeError {
		t.Fatalf("unknown type frame: %+v", f)
	}
	send(viewerproto.ControlMsg{Type: viewerproto.TypeJump, ProtocolVersion: "9.9"})
	if f := read(); f.Type != viewerproto.TypeError {
		t.Fatalf("version frame: %+v", f)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.2:5000":  false,
		"garbage":        false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}
