package protocol

import (
	"encoding/json"
	"fmt"
)

func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("envelope type is required")
	}
	if payload == nil {
		return nil, fmt.Errorf("payload for %q is nil", t)
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %q payload: %w", t, err)
	}
	return json.Marshal(Envelope{T: t, P: pb})
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("empty envelope")
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if e.T == "" {
		return Envelope{}, fmt.Errorf("envelope without type")
	}
	return e, nil
}

// DecodePayload unmarshals the payload into T. Messages without arguments
// may carry an empty payload.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(env.P, &out); err != nil {
		return out, fmt.Errorf("failed to decode %q payload: %w", env.T, err)
	}
	return out, nil
}
