package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

// ErrMalformedRecord marks a record that was present but did not decode to a
// usable value. Readers treat it as "no signal" and keep polling.
var ErrMalformedRecord = errors.New("bridge: malformed record")

// SignalMailbox publishes and fetches one Signal record per instrument.
// There is no acknowledgement channel: duplicate delivery is expected and
// the executor deduplicates on the timestamp.
type SignalMailbox struct {
	slot Slot
}

func NewSignalMailbox(slot Slot) *SignalMailbox {
	return &SignalMailbox{slot: slot}
}

func signalKey(symbol string) string {
	return "signal_" + symbol + ".json"
}

// Publish overwrites the instrument's signal record.
func (m *SignalMailbox) Publish(ctx context.Context, sig model.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}
	return m.slot.Write(ctx, signalKey(sig.Symbol), data)
}

// Fetch reads the current signal record for symbol. Returns ErrNoRecord when
// none was ever written and ErrMalformedRecord (wrapped) when the record is
// corrupt or fails basic validation.
func (m *SignalMailbox) Fetch(ctx context.Context, symbol string) (model.Signal, error) {
	data, err := m.slot.Read(ctx, signalKey(symbol))
	if err != nil {
		return model.Signal{}, err
	}
	var sig model.Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		return model.Signal{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if sig.Symbol != symbol || !sig.Direction.Valid() || sig.Timestamp <= 0 {
		return model.Signal{}, fmt.Errorf("%w: invalid fields for %s", ErrMalformedRecord, symbol)
	}
	return sig, nil
}
