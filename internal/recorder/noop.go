package recorder

import "github.com/andreapianidev/OpenTradingMT4bot/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSignal(_ model.Signal) error           { return nil }
func (n *NoopRecorder) RecordOrder(_ *OrderEvent) error             { return nil }
func (n *NoopRecorder) RecordAccount(_ model.AccountSnapshot) error { return nil }
func (n *NoopRecorder) Close() error                                { return nil }
