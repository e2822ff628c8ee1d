package signal

import (
	"encoding/json"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	t.Run("Malformed", func(t *testing.T) {
		for name, body := range map[string]string{
			"NotJSON":  "not json at all",
			"Truncated": `{"type":"join"`,
			"Array":    `[1,2,3]`,
		} {
			t.Run(name, func(t *testing.T) {
				if _, err := ParseEnvelope([]byte(body)); err == nil {
					t.Fatalf("expected parse error for %q", body)
				}
			})
		}
	})

	t.Run("Kinds", func(t *testing.T) {
		for body, want := range map[string]Kind{
			`{"type":"join"}`:      KindJoin,
			`{"type":"ring"}`:      KindRing,
			`{"type":"offer"}`:     KindOffer,
			`{"type":"answer"}`:    KindAnswer,
			`{"type":"candidate"}`: KindCandidate,
			`{"type":"hangup"}`:    KindHangup,
			`{"type":"mystery"}`:   KindUnknown,
			`{"type":42}`:          KindUnknown,
			`{}`:                   KindUnknown,
		} {
			env, err := ParseEnvelope([]byte(body))
			if err != nil {
				t.Fatalf("parse %q: %v", body, err)
			}
			if env.Kind != want {
				t.Errorf("%q: got kind %q, want %q", body, env.Kind, want)
			}
		}
	})

	t.Run("RoomField", func(t *testing.T) {
		env, err := ParseEnvelope([]byte(`{"type":"join","roomId":"R1","role":"owner"}`))
		if err != nil {
			t.Fatal(err)
		}
		if env.Room != "R1" || env.Role != RoleOwner {
			t.Fatalf("got room %q role %q", env.Room, env.Role)
		}
	})

	t.Run("LegacyRoomAlias", func(t *testing.T) {
		env, err := ParseEnvelope([]byte(`{"type":"join","room":"R1","role":"caller"}`))
		if err != nil {
			t.Fatal(err)
		}
		if env.Room != "R1" {
			t.Fatalf("legacy room field ignored, got %q", env.Room)
		}
	})
}

func TestEnvelopeTagged(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"offer","offer":{"sdp":"x"},"extra":[1,2]}`))
	if err != nil {
		t.Fatal(err)
	}

	data, err := env.Tagged(RoleCaller)
	if err != nil {
		t.Fatal(err)
	}

	frame := map[string]any{}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatal(err)
	}
	if frame["type"] != "offer" {
		t.Fatalf("type lost: %v", frame)
	}
	if offer := frame["offer"].(map[string]any); offer["sdp"] != "x" {
		t.Fatalf("payload mutated: %v", frame)
	}
	if len(frame["extra"].([]any)) != 2 {
		t.Fatalf("sibling field lost: %v", frame)
	}
	if frame["_fromRole"] != "caller" {
		t.Fatalf("sender tag missing: %v", frame)
	}
}
