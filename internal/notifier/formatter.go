package notifier

import (
	"fmt"
	"time"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

// FormatSignal renders a published signal as a Telegram HTML message.
func FormatSignal(sig model.Signal) string {
	arrow := "📈"
	if sig.Direction == model.DirectionShort {
		arrow = "📉"
	}
	msg := fmt.Sprintf("%s <b>%s %s</b>\n", arrow, sig.Symbol, sig.Direction)
	msg += fmt.Sprintf("Entry: %.5g\n", sig.Entry)
	msg += fmt.Sprintf("SL: %.5g | TP: %.5g\n", sig.StopLoss, sig.TakeProfit)
	msg += fmt.Sprintf("Lot: %.2f\n", sig.Lot)
	msg += fmt.Sprintf("Time: %s", time.Unix(sig.Timestamp, 0).UTC().Format("2006-01-02 15:04 MST"))
	if sig.Degraded {
		msg += "\n⚠️ degraded: fallback stop distance in use"
	}
	return msg
}

// FormatTradeError renders a fatal trade failure for the operator.
func FormatTradeError(op, symbol string, code, attempts int, detail string) string {
	return fmt.Sprintf("🚨 <b>%s %s failed</b>\ncode %d after %d attempt(s)\n%s",
		symbol, op, code, attempts, detail)
}
