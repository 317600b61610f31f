package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// WriteTo serializes snap as JSON to w -- the in-memory analogue of the
// teacher's RDB dump (internal/rdb/rdb.go), generalized from a hardcoded
// file path to any io.Writer so exporting a snapshot never touches disk
// itself (spec.md Non-goals: no persistence). Callers choose the sink.
func WriteTo(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	return enc.Encode(snap)
}

// ReadFrom reconstructs a Snapshot previously written by WriteTo, including
// compound entries (map/set/array/object): serialize.Deserialize tolerates
// the generic map[string]interface{}/[]interface{} shapes encoding/json
// substitutes for a nested serialize.Value/[2]any pair once it has been
// through a JSON round-trip (see serialize.asValue/asPair).
func ReadFrom(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	dec := json.NewDecoder(r)
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return &snap, nil
}

// CommandLogEntry is one entry of the command-log export shape -- the
// analogue of the teacher's AOF (internal/aof/aof.go), generalized from a
// replayable on-disk log of RESP commands to an in-memory ordered list of
// "set(atom, value)" operations a caller can replay however it likes.
type CommandLogEntry struct {
	AtomName string      `json:"atom"`
	Value    interface{} `json:"value"`
}

// CommandLog renders snap as an ordered sequence of set operations, sorted
// by atom name for a replay order that is deterministic across calls.
func CommandLog(snap *Snapshot) []CommandLogEntry {
	names := make([]string, 0, len(snap.State))
	for name := range snap.State {
		names = append(names, name)
	}
	sort.Strings(names)

	log := make([]CommandLogEntry, 0, len(names))
	for _, name := range names {
		log = append(log, CommandLogEntry{AtomName: name, Value: snap.State[name].Value.Data})
	}
	return log
}
