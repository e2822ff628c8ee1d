package signal

import "encoding/json"

// Kind discriminates signaling envelopes. The set is closed; anything a
// client sends outside of it parses to KindUnknown and is dropped.
type Kind string

const (
	// client -> server
	KindJoin Kind = "join"

	// relayed between the two slots of a room
	KindRing      Kind = "ring"
	KindOffer     Kind = "offer"
	KindAnswer    Kind = "answer"
	KindCandidate Kind = "candidate"
	KindHangup    Kind = "hangup"

	// server -> client
	KindJoined     Kind = "joined"
	KindPeerJoined Kind = "peer-joined"
	KindPeerLeft   Kind = "peer-left"

	KindUnknown Kind = ""
)

func KindOf(s string) Kind {
	switch Kind(s) {
	case KindJoin, KindRing, KindOffer, KindAnswer, KindCandidate, KindHangup:
		return Kind(s)
	}
	return KindUnknown
}

// Role is the slot a connection occupies within a room.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleCaller Role = "caller"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleCaller
}

// Envelope is one parsed client message. Only the header fields the relay
// dispatches on are interpreted; everything else is retained verbatim so
// offer/answer/candidate payloads pass through untouched.
type Envelope struct {
	Kind Kind
	Room string
	Role Role

	fields map[string]json.RawMessage
}

func ParseEnvelope(raw []byte) (*Envelope, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	env := &Envelope{fields: fields}
	env.Kind = KindOf(stringField(fields, "type"))
	env.Room = stringField(fields, "roomId")
	if env.Room == "" {
		// legacy wire format named the field "room"
		env.Room = stringField(fields, "room")
	}
	env.Role = Role(stringField(fields, "role"))
	return env, nil
}

// Tagged encodes the envelope for relaying, stamped with the sender's role
// so mixed free-form clients can tell the direction apart.
func (e *Envelope) Tagged(from Role) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.fields)+1)
	for k, v := range e.fields {
		out[k] = v
	}

	role, err := json.Marshal(from)
	if err != nil {
		return nil, err
	}
	out["_fromRole"] = role

	return json.Marshal(out)
}

func stringField(fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Server-sent notification shapes.

type joinedMessage struct {
	Type   Kind   `json:"type"`
	RoomID string `json:"roomId"`
	Role   Role   `json:"role"`
}

type peerJoinedMessage struct {
	Type Kind `json:"type"`
	Role Role `json:"role"`
}

type peerLeftMessage struct {
	Type Kind `json:"type"`
}
