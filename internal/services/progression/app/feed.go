package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/emberhabit/ember/internal/services/progression/domain"
	"github.com/emberhabit/ember/internal/services/progression/storage"
	"golang.org/x/net/websocket"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3

	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type subscribePayload struct {
	ScopeKind   string `json:"scope_kind"`
	ScopeID     string `json:"scope_id"`
	RecentLimit int    `json:"recent_limit,omitempty"`
}

type subscribedPayload struct {
	ScopeKind  string `json:"scope_kind"`
	ScopeID    string `json:"scope_id"`
	ServerTime string `json:"server_time"`
}

type recentPayload struct {
	ScopeKind    string            `json:"scope_kind"`
	ScopeID      string            `json:"scope_id"`
	Celebrations []feedCelebration `json:"celebrations"`
}

type celebrationEnvelope struct {
	Celebration feedCelebration `json:"celebration"`
}

type feedCelebration struct {
	ID           string  `json:"id,omitempty"`
	ScopeKind    string  `json:"scope_kind"`
	ScopeID      string  `json:"scope_id"`
	Kind         string  `json:"kind"`
	OldValue     int     `json:"old_value"`
	NewValue     int     `json:"new_value"`
	PreviousTier string  `json:"previous_tier"`
	CurrentTier  string  `json:"current_tier"`
	TierIndex    int     `json:"tier_index"`
	Multiplier   float64 `json:"multiplier"`
	FiredAt      string  `json:"fired_at"`
}

type milestonesEnvelope struct {
	ScopeKind  string          `json:"scope_kind"`
	ScopeID    string          `json:"scope_id"`
	Milestones []feedMilestone `json:"milestones"`
	TotalXP    int             `json:"total_xp"`
}

type feedMilestone struct {
	ID           string `json:"id"`
	DayThreshold int    `json:"day_threshold"`
	XP           int    `json:"xp"`
	Badge        string `json:"badge,omitempty"`
}

// wsPeer serializes frame writes onto a single connection.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// scopeHub fans celebration frames out to the peers subscribed to each scope.
type scopeHub struct {
	mu    sync.Mutex
	rooms map[string]*scopeRoom
}

func newScopeHub() *scopeHub {
	return &scopeHub{rooms: make(map[string]*scopeRoom)}
}

func (h *scopeHub) room(key string) *scopeRoom {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[key]
	if !ok {
		room = &scopeRoom{subscribers: make(map[*wsPeer]struct{})}
		h.rooms[key] = room
	}
	return room
}

func (h *scopeHub) broadcast(key string, frame wsFrame) {
	room := h.room(key)
	for _, peer := range room.peers() {
		_ = peer.writeFrame(frame)
	}
}

type scopeRoom struct {
	mu          sync.Mutex
	subscribers map[*wsPeer]struct{}
}

func (r *scopeRoom) join(peer *wsPeer) {
	r.mu.Lock()
	r.subscribers[peer] = struct{}{}
	r.mu.Unlock()
}

func (r *scopeRoom) leave(peer *wsPeer) {
	r.mu.Lock()
	delete(r.subscribers, peer)
	r.mu.Unlock()
}

func (r *scopeRoom) peers() []*wsPeer {
	r.mu.Lock()
	defer r.mu.Unlock()
	peers := make([]*wsPeer, 0, len(r.subscribers))
	for peer := range r.subscribers {
		peers = append(peers, peer)
	}
	return peers
}

// wsSession tracks the scopes one connection has subscribed to.
type wsSession struct {
	mu    sync.Mutex
	peer  *wsPeer
	rooms map[string]*scopeRoom
}

func newWSSession(peer *wsPeer) *wsSession {
	return &wsSession{peer: peer, rooms: make(map[string]*scopeRoom)}
}

func (s *wsSession) track(key string, room *scopeRoom) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[key]; ok {
		return false
	}
	s.rooms[key] = room
	return true
}

func (s *wsSession) leaveAll() {
	s.mu.Lock()
	rooms := s.rooms
	s.rooms = make(map[string]*scopeRoom)
	s.mu.Unlock()
	for _, room := range rooms {
		room.leave(s.peer)
	}
}

// newFeedHandler creates the daemon's HTTP routes: the websocket feed and a
// liveness probe. Subscribing to a scope doubles as its activation trigger.
func newFeedHandler(hub *scopeHub, celebrations storage.CelebrationStore, activate func(domain.Scope)) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, hub, celebrations, activate)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	return mux
}

func handleWSConn(conn *websocket.Conn, hub *scopeHub, celebrations storage.CelebrationStore, activate func(domain.Scope)) {
	defer func() {
		_ = conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	session := newWSSession(newWSPeer(json.NewEncoder(conn)))
	defer session.leaveAll()

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(session.peer, "", "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(session.peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case "feed.subscribe":
			handleSubscribeFrame(conn.Request().Context(), session, hub, celebrations, activate, frame)
		case "feed.recent":
			handleRecentFrame(conn.Request().Context(), session, celebrations, frame)
		default:
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

func parseScopePayload(payload subscribePayload) (domain.Scope, error) {
	kind, err := domain.ParseScopeKind(payload.ScopeKind)
	if err != nil {
		return domain.Scope{}, err
	}
	scope := domain.Scope{Kind: kind, ID: payload.ScopeID}
	if err := scope.Validate(); err != nil {
		return domain.Scope{}, err
	}
	return scope, nil
}

func handleSubscribeFrame(ctx context.Context, session *wsSession, hub *scopeHub, celebrations storage.CelebrationStore, activate func(domain.Scope), frame wsFrame) {
	var payload subscribePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid subscribe payload")
		return
	}

	scope, err := parseScopePayload(payload)
	if err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", err.Error())
		return
	}

	key := scope.Key()
	room := hub.room(key)
	if session.track(key, room) {
		room.join(session.peer)
	}

	_ = session.peer.writeFrame(wsFrame{
		Type:      "feed.subscribed",
		RequestID: frame.RequestID,
		Payload: mustJSON(subscribedPayload{
			ScopeKind:  string(scope.Kind),
			ScopeID:    scope.ID,
			ServerTime: time.Now().UTC().Format(time.RFC3339),
		}),
	})

	limit := payload.RecentLimit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	sendRecentCelebrations(ctx, session, celebrations, scope, limit, "")

	// Subscribing is the scope's natural trigger; the refresh runs off the
	// connection's read loop so a slow backend never stalls the feed.
	if activate != nil {
		activate(scope)
	}
}

func handleRecentFrame(ctx context.Context, session *wsSession, celebrations storage.CelebrationStore, frame wsFrame) {
	var payload subscribePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid recent payload")
		return
	}

	scope, err := parseScopePayload(payload)
	if err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", err.Error())
		return
	}

	limit := payload.RecentLimit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	sendRecentCelebrations(ctx, session, celebrations, scope, limit, frame.RequestID)
}

func sendRecentCelebrations(ctx context.Context, session *wsSession, celebrations storage.CelebrationStore, scope domain.Scope, limit int, requestID string) {
	if celebrations == nil {
		return
	}
	records, err := celebrations.ListCelebrationsByScope(ctx, string(scope.Kind), scope.ID, limit)
	if err != nil {
		log.Printf("progression: list recent celebrations scope=%s: %v", scope.Key(), err)
		_ = writeWSError(session.peer, requestID, "UNAVAILABLE", "celebration backlog unavailable")
		return
	}

	backlog := make([]feedCelebration, 0, len(records))
	for _, record := range records {
		backlog = append(backlog, feedCelebrationFromRecord(record))
	}
	_ = session.peer.writeFrame(wsFrame{
		Type:      "feed.recent",
		RequestID: requestID,
		Payload: mustJSON(recentPayload{
			ScopeKind:    string(scope.Kind),
			ScopeID:      scope.ID,
			Celebrations: backlog,
		}),
	})
}

func feedCelebrationFromRecord(record storage.CelebrationRecord) feedCelebration {
	return feedCelebration{
		ID:           record.ID,
		ScopeKind:    record.ScopeKind,
		ScopeID:      record.ScopeID,
		Kind:         record.Kind,
		OldValue:     record.OldValue,
		NewValue:     record.NewValue,
		PreviousTier: record.PreviousTier,
		CurrentTier:  record.CurrentTier,
		TierIndex:    record.TierIndex,
		Multiplier:   record.Multiplier,
		FiredAt:      record.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func writeWSError(peer *wsPeer, requestID string, code string, message string) error {
	return peer.writeFrame(wsFrame{
		Type:      "feed.error",
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{
				Code:      code,
				Message:   message,
				Retryable: false,
			},
		}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
