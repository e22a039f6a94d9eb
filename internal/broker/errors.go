package broker

import (
	"errors"
	"fmt"
)

// Numeric trade error codes, following the MetaTrader server convention so
// the classification table can be checked against broker documentation.
const (
	CodeInvalidParams    = 3
	CodeServerBusy       = 4
	CodeNoConnection     = 6
	CodeTooFrequent      = 8
	CodeAccountDisabled  = 64
	CodeInvalidAccount   = 65
	CodeTradeTimeout     = 128
	CodeInvalidPrice     = 129
	CodeInvalidStops     = 130
	CodeInvalidVolume    = 131
	CodeMarketClosed     = 132
	CodeTradeDisabled    = 133
	CodeNotEnoughMoney   = 134
	CodePriceChanged     = 135
	CodeOffQuotes        = 136
	CodeBrokerBusy       = 137
	CodeRequote          = 138
	CodeTooManyRequests  = 141
	CodeTradeContextBusy = 146
)

// Class partitions trade errors into those worth retrying and those that
// must be surfaced immediately.
type Class int

const (
	ClassFatal Class = iota
	ClassRecoverable
)

func (c Class) String() string {
	if c == ClassRecoverable {
		return "recoverable"
	}
	return "fatal"
}

// classTable is the data-driven classification. Recoverable means transient
// connectivity or timing trouble where the same order may succeed on a fresh
// price. Anything absent from the table is fatal.
var classTable = map[int]Class{
	CodeServerBusy:       ClassRecoverable,
	CodeNoConnection:     ClassRecoverable,
	CodeTooFrequent:      ClassRecoverable,
	CodeTradeTimeout:     ClassRecoverable,
	CodePriceChanged:     ClassRecoverable,
	CodeOffQuotes:        ClassRecoverable,
	CodeBrokerBusy:       ClassRecoverable,
	CodeRequote:          ClassRecoverable,
	CodeTooManyRequests:  ClassRecoverable,
	CodeTradeContextBusy: ClassRecoverable,

	CodeInvalidParams:   ClassFatal,
	CodeAccountDisabled: ClassFatal,
	CodeInvalidAccount:  ClassFatal,
	CodeInvalidPrice:    ClassFatal,
	CodeInvalidStops:    ClassFatal,
	CodeInvalidVolume:   ClassFatal,
	CodeMarketClosed:    ClassFatal,
	CodeTradeDisabled:   ClassFatal,
	CodeNotEnoughMoney:  ClassFatal,
}

// Classify maps a trade error code to its class. Unknown codes are fatal.
func Classify(code int) Class {
	if class, ok := classTable[code]; ok {
		return class
	}
	return ClassFatal
}

// Error is a broker-level trade failure with its server error code.
type Error struct {
	Op     string
	Symbol string
	Code   int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: [%d] %s (%s)", e.Op, e.Symbol, e.Code, e.Msg, Classify(e.Code))
}

// IsRecoverable reports whether err is a broker error worth retrying.
// Non-broker errors (context cancellation, transport failures outside the
// trade server) are never retried.
func IsRecoverable(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return Classify(be.Code) == ClassRecoverable
	}
	return false
}

// AsError unwraps a *Error from err when present.
func AsError(err error) (*Error, bool) {
	var be *Error
	ok := errors.As(err, &be)
	return be, ok
}
