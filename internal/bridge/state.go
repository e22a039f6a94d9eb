package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

// TradeError is the last fatal trade failure, carried in the state export so
// a failed placement is visible without log inspection.
type TradeError struct {
	Op          string    `json:"op"`
	Symbol      string    `json:"symbol"`
	Code        int       `json:"code"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
	At          time.Time `json:"at"`
}

// StateExport is the full position/account snapshot the executor publishes on
// every poll cycle, whether or not a new signal arrived.
type StateExport struct {
	Positions []model.Position      `json:"positions"`
	Account   model.AccountSnapshot `json:"account"`
	LastError *TradeError           `json:"lastError,omitempty"`
}

// StateMailbox publishes the executor state, scoped by strategy identifier so
// multiple strategies on one account do not overwrite each other.
type StateMailbox struct {
	slot       Slot
	strategyID string
}

func NewStateMailbox(slot Slot, strategyID string) *StateMailbox {
	return &StateMailbox{slot: slot, strategyID: strategyID}
}

func (m *StateMailbox) key() string {
	return "state_" + m.strategyID + ".json"
}

// Publish rewrites the state record.
func (m *StateMailbox) Publish(ctx context.Context, export StateExport) error {
	if export.Positions == nil {
		export.Positions = []model.Position{}
	}
	data, err := json.Marshal(export)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return m.slot.Write(ctx, m.key(), data)
}

// Fetch reads the current state record, for external consumers and tests.
func (m *StateMailbox) Fetch(ctx context.Context) (StateExport, error) {
	data, err := m.slot.Read(ctx, m.key())
	if err != nil {
		return StateExport{}, err
	}
	var export StateExport
	if err := json.Unmarshal(data, &export); err != nil {
		return StateExport{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return export, nil
}
