package sessionkit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const snapshotVersion = 1

var errCorruptSnapshot = errors.New("corrupt identity snapshot")

type snapshotEnvelope struct {
	Version  int       `json:"v"`
	SavedAt  time.Time `json:"saved_at"`
	Identity *Identity `json:"identity"`
}

func encodeSnapshot(id Identity, now time.Time) ([]byte, error) {
	return json.Marshal(snapshotEnvelope{
		Version:  snapshotVersion,
		SavedAt:  now.UTC(),
		Identity: &id,
	})
}

// decodeSnapshot accepts the versioned envelope and the bare profile object
// the web client stored before it.
func decodeSnapshot(b []byte) (Identity, time.Time, error) {
	b = bytes.TrimSpace(b)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil || fields == nil {
		return Identity{}, time.Time{}, errCorruptSnapshot
	}

	if _, ok := fields["v"]; ok {
		var env snapshotEnvelope
		if err := json.Unmarshal(b, &env); err != nil {
			return Identity{}, time.Time{}, fmt.Errorf("%w: %v", errCorruptSnapshot, err)
		}
		if env.Version != snapshotVersion {
			return Identity{}, time.Time{}, fmt.Errorf("%w: unsupported version %d", errCorruptSnapshot, env.Version)
		}
		if env.Identity == nil || !plausibleIdentity(*env.Identity) {
			return Identity{}, time.Time{}, errCorruptSnapshot
		}
		return *env.Identity, env.SavedAt, nil
	}

	var legacy Identity
	if err := json.Unmarshal(b, &legacy); err != nil {
		return Identity{}, time.Time{}, fmt.Errorf("%w: %v", errCorruptSnapshot, err)
	}
	if !plausibleIdentity(legacy) {
		return Identity{}, time.Time{}, errCorruptSnapshot
	}
	return legacy, time.Time{}, nil
}

func plausibleIdentity(id Identity) bool {
	return id.ID > 0 || id.Username != ""
}
