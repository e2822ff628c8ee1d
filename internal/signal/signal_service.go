package signal

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// Conn is the write side of one signaling transport. The service never owns
// the connection's lifecycle; closing is the transport layer's job and a
// failed write is how the service learns a peer is gone.
type Conn interface {
	WriteJSON(val any) error
	WriteRaw(data []byte) error
	Close() error
}

// Session is the registry's record of one live connection. Room and role are
// set exactly once, by a successful join, and only read afterwards. All
// field access goes through the service mutex.
type Session struct {
	ID string

	conn Conn
	room string
	role Role
}

// slots holds session ids, not sessions. A slot must never keep a dead
// connection alive, so it is resolved through the registry on every use and
// treated as vacant when the session is no longer registered.
type slots struct {
	owner  string
	caller string
}

type Service struct {
	mu     sync.Mutex
	logger *slog.Logger

	sessions map[string]*Session
	rooms    map[string]*slots
}

type NewServiceParams struct {
	fx.In

	Logger *slog.Logger
}

func NewService(params NewServiceParams) *Service {
	return &Service{
		logger:   params.Logger,
		sessions: make(map[string]*Session),
		rooms:    make(map[string]*slots),
	}
}

// Connect registers a fresh unjoined session for the given transport.
func (s *Service) Connect(conn Conn) *Session {
	sess := &Session{
		ID:   uuid.NewString(),
		conn: conn,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Debug("session connected", slog.String("session", sess.ID))
	return sess
}

// Join assigns the session to a room slot. Empty room ids and unknown roles
// make it a no-op, as does a repeated join: once joined a session stays in
// its room until the transport closes. An occupied slot is overwritten, last
// writer wins; the replaced occupant is not told, it simply stops being a
// relay target.
func (s *Service) Join(sess *Session, roomID string, role Role) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" || !role.Valid() {
		return
	}

	s.mu.Lock()
	if sess.room != "" {
		s.mu.Unlock()
		return
	}

	r, ok := s.rooms[roomID]
	if !ok {
		r = &slots{}
		s.rooms[roomID] = r
	}

	sess.room = roomID
	sess.role = role
	switch role {
	case RoleOwner:
		r.owner = sess.ID
	case RoleCaller:
		r.caller = sess.ID
	}

	peer := s.oppositeLocked(r, role)
	s.mu.Unlock()

	s.logger.Info("session joined",
		slog.String("session", sess.ID),
		slog.String("room", roomID),
		slog.String("role", string(role)))

	s.send(sess, joinedMessage{Type: KindJoined, RoomID: roomID, Role: role})
	if peer != nil {
		s.send(peer, peerJoinedMessage{Type: KindPeerJoined, Role: role})
	}
}

// Relay forwards an envelope verbatim to the opposite slot of the sender's
// room. Senders that never joined, were replaced in their slot, or have no
// counterpart yet are silently ignored; nobody listening is a normal state.
func (s *Service) Relay(sess *Session, env *Envelope) {
	s.mu.Lock()
	from := sess.role
	var target *Session
	if r := s.rooms[sess.room]; sess.room != "" && r != nil {
		target = s.oppositeLocked(r, from)
	}
	s.mu.Unlock()

	if target == nil {
		return
	}

	data, err := env.Tagged(from)
	if err != nil {
		return
	}
	if err := target.conn.WriteRaw(data); err != nil {
		s.logger.Debug("relay target gone",
			slog.String("session", target.ID),
			slog.String("err", err.Error()))
		s.dropStale(target)
	}
}

// RoomOf reports the room the session joined, or "" while unjoined.
func (s *Service) RoomOf(sess *Session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.room
}

// Disconnect runs the slot-vacate protocol: clear whichever slot still
// references the session, tell the remaining peer, and drop the room once
// both slots are empty or stale. Close and transport error funnel into the
// same path.
func (s *Service) Disconnect(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	peer := s.vacateLocked(sess)
	s.mu.Unlock()

	s.logger.Debug("session disconnected", slog.String("session", sess.ID))

	if peer != nil {
		s.send(peer, peerLeftMessage{Type: KindPeerLeft})
	}
}

// RoomCount reports how many rooms are currently tracked.
func (s *Service) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

type RoomInfo struct {
	RoomID string `json:"roomId"`
	Owner  bool   `json:"owner"`
	Caller bool   `json:"caller"`
}

func (s *Service) Rooms() []RoomInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]RoomInfo, 0, len(s.rooms))
	for roomID, r := range s.rooms {
		result = append(result, RoomInfo{
			RoomID: roomID,
			Owner:  s.occupiedLocked(r.owner),
			Caller: s.occupiedLocked(r.caller),
		})
	}
	return result
}

// dropStale vacates a session whose transport turned out to be dead on a
// write attempt, before its close event has surfaced. The eventual
// Disconnect then finds nothing left to vacate, so the remaining peer sees
// exactly one peer-left either way.
func (s *Service) dropStale(stale *Session) {
	s.mu.Lock()
	peer := s.vacateLocked(stale)
	s.mu.Unlock()

	if peer != nil {
		s.send(peer, peerLeftMessage{Type: KindPeerLeft})
	}
}

// vacateLocked clears any slot referencing the session, matching by
// identity rather than role, and evicts the room when both slots are gone.
// It returns the remaining live peer iff a slot was actually vacated.
func (s *Service) vacateLocked(sess *Session) *Session {
	if sess.room == "" {
		return nil
	}
	r, ok := s.rooms[sess.room]
	if !ok {
		return nil
	}

	vacated := false
	if r.owner == sess.ID {
		r.owner = ""
		vacated = true
	}
	if r.caller == sess.ID {
		r.caller = ""
		vacated = true
	}

	var peer *Session
	if vacated {
		peer = s.anyOccupantLocked(r, sess.ID)
	}

	if !s.occupiedLocked(r.owner) && !s.occupiedLocked(r.caller) {
		delete(s.rooms, sess.room)
		s.logger.Info("room evicted", slog.String("room", sess.room))
	}

	return peer
}

// oppositeLocked resolves the occupant of the other role's slot, or nil
// when that slot is empty or stale.
func (s *Service) oppositeLocked(r *slots, role Role) *Session {
	var id string
	switch role {
	case RoleOwner:
		id = r.caller
	case RoleCaller:
		id = r.owner
	}
	if id == "" {
		return nil
	}
	peer, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return peer
}

// anyOccupantLocked returns a live occupant of either slot, used after an
// identity-matched vacate where the vacated side's role cannot be trusted.
func (s *Service) anyOccupantLocked(r *slots, selfID string) *Session {
	for _, id := range []string{r.owner, r.caller} {
		if id == "" || id == selfID {
			continue
		}
		if peer, ok := s.sessions[id]; ok {
			return peer
		}
	}
	return nil
}

func (s *Service) occupiedLocked(id string) bool {
	if id == "" {
		return false
	}
	_, ok := s.sessions[id]
	return ok
}

func (s *Service) send(target *Session, val any) {
	if err := target.conn.WriteJSON(val); err != nil {
		s.logger.Debug("send failed",
			slog.String("session", target.ID),
			slog.String("err", err.Error()))
		s.dropStale(target)
	}
}
