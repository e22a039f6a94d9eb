package executor

import (
	"encoding/json"
	"os"
	"time"
)

// State is the executor's durable memory between restarts: the timestamp of
// the last signal applied per symbol. A signal is marked applied before the
// first order goes out, so a crash mid-application never replays it.
type State struct {
	LastApplied map[string]int64 `json:"lastApplied"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// LoadState reads the executor state from a JSON file. Returns a zero state
// if the file doesn't exist.
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{LastApplied: make(map[string]int64)}, nil
		}
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.LastApplied == nil {
		state.LastApplied = make(map[string]int64)
	}
	return &state, nil
}

// SaveState writes the executor state to a JSON file.
func SaveState(filePath string, state *State) error {
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}
