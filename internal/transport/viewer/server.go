package viewer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"gridreplay.ai/internal/persistence/tables"
	"gridreplay.ai/internal/replay"
	"gridreplay.ai/internal/viewerproto"
)

const maxCached = 32

// Server serves persisted replays to local viewers over HTTP and websocket.
type Server struct {
	root string
	log  zerolog.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu    sync.Mutex
	cache map[int64]*replay.Tables
}

func NewServer(tablesDir string, logger zerolog.Logger) *Server {
	return &Server{
		root: tablesDir,
		log:  logger.With().Str("component", "Viewer").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only, see handlers
		},
		cache: map[int64]*replay.Tables{},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/replays/{id}", s.BootstrapHandler())
	mux.HandleFunc("GET /v1/replays/{id}/actions", s.ActionsHandler())
	mux.HandleFunc("GET /v1/replays/{id}/ws", s.WSHandler())
	return mux
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		t, ok := s.tablesFor(rw, r)
		if !ok {
			return
		}
		writeJSON(rw, viewerproto.BootstrapResponse{
			ProtocolVersion: viewerproto.Version,
			ReplayID:        t.ReplayID,
			GridSize:        t.GridSize,
			Terrain:         t.Terrain,
			Rounds:          t.Rounds(),
			Snapshots:       t.Snapshots(),
			Outcome:         outcome(t.Outcome),
		})
	}
}

// ActionsHandler returns the action table, or one round of it with ?round=N.
func (s *Server) ActionsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		t, ok := s.tablesFor(rw, r)
		if !ok {
			return
		}
		round := -1
		if v := r.URL.Query().Get("round"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(rw, "bad round", http.StatusBadRequest)
				return
			}
			round = n
		}
		resp := viewerproto.ActionsResponse{
			ProtocolVersion: viewerproto.Version,
			ReplayID:        t.ReplayID,
			Actions:         []viewerproto.Action{},
		}
		for _, a := range t.Actions {
			if round >= 0 && a.Round != round {
				continue
			}
			resp.Actions = append(resp.Actions, action(a))
		}
		writeJSON(rw, resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		t, ok := s.tablesFor(rw, r)
		if !ok {
			return
		}
		l, err := replay.NewLoader(t)
		if err != nil {
			s.log.Error().Err(err).Int64("replay_id", t.ReplayID).Msg("Replay tables rejected")
			http.Error(rw, "replay unavailable", http.StatusInternalServerError)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid := fmt.Sprintf("V%d", s.nextID.Add(1))
		log := s.log.With().Str("session", sid).Int64("replay_id", t.ReplayID).Logger()
		log.Debug().Msg("Viewer connected")

		send := func(v any) error {
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			return conn.WriteMessage(websocket.TextMessage, b)
		}
		snapshot := func() error {
			return send(viewerproto.SnapshotMsg{
				Type:            viewerproto.TypeSnapshot,
				ProtocolVersion: viewerproto.Version,
				ReplayID:        t.ReplayID,
				Action:          action(l.CurrentAction()),
				Snapshot:        l.Snapshot(),
			})
		}
		fail := func(msg string) error {
			return send(viewerproto.ErrorMsg{Type: viewerproto.TypeError, ProtocolVersion: viewerproto.Version, Message: msg})
		}

		handle := func(msg []byte) error {
			var ctl viewerproto.ControlMsg
			if err := json.Unmarshal(msg, &ctl); err != nil {
				return fail("bad message")
			}
			if ctl.ProtocolVersion != viewerproto.Version {
				return fail("unsupported protocol version")
			}
			switch ctl.Type {
			case viewerproto.TypeJump:
				if _, err := l.JumpTo(ctl.Round, ctl.ActionIndex); err != nil {
					return fail(err.Error())
				}
				return snapshot()
			case viewerproto.TypeNext:
				if l.Advance() {
					return snapshot()
				}
				return send(viewerproto.EndMsg{
					Type:            viewerproto.TypeEnd,
					ProtocolVersion: viewerproto.Version,
					ReplayID:        t.ReplayID,
					Outcome:         outcome(l.Outcome()),
				})
			default:
				return fail("expected JUMP or NEXT")
			}
		}

		if err := snapshot(); err != nil {
			return
		}
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if err := handle(msg); err != nil {
				break
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		log.Debug().Msg("Viewer disconnected")
	}
}

func (s *Server) tablesFor(rw http.ResponseWriter, r *http.Request) (*replay.Tables, bool) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return nil, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(rw, "bad replay id", http.StatusBadRequest)
		return nil, false
	}
	t, err := s.load(id)
	if err != nil {
		if errors.Is(err, errNotFound) {
			http.Error(rw, "replay not found", http.StatusNotFound)
		} else {
			s.log.Error().Err(err).Int64("replay_id", id).Msg("Load replay failed")
			http.Error(rw, "replay unavailable", http.StatusInternalServerError)
		}
		return nil, false
	}
	return t, true
}

var errNotFound = errors.New("replay not found")

// load returns the stored tables of id. Tables are read-only once loaded, so one copy is
// shared by every connection.
func (s *Server) load(id int64) (*replay.Tables, error) {
	s.mu.Lock()
	t, ok := s.cache[id]
	s.mu.Unlock()
	if ok {
		return t, nil
	}
	if !tables.Exists(s.root, id) {
		return nil, errNotFound
	}
	t, err := tables.Read(s.root, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cache) >= maxCached {
		for k := range s.cache {
			delete(s.cache, k)
			break
		}
	}
	s.cache[id] = t
	return t, nil
}

func action(a replay.ActionRow) viewerproto.Action {
	out := viewerproto.Action{
		Round:       a.Round,
		ActionIndex: a.Index,
		Player:      a.Player,
		Code:        int(a.Code),
		Description: a.Description,
		Params:      a.Params,
		RemainCoins: a.RemainCoins,
		UnitID:      a.UnitID,
	}
	if p, ok := a.Affected(); ok {
		out.Target = &[2]int{p.X, p.Y}
	}
	return out
}

func outcome(o replay.Outcome) viewerproto.Outcome {
	return viewerproto.Outcome{Ended: o.Ended, Winner: o.Winner, Reason: o.Reason}
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
