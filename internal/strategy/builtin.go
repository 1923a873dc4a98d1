package strategy

import (
	"log/slog"
)

// Builtins returns the vendor strategies in registration order. The generic
// strategy is last.
func Builtins(logger *slog.Logger) []Strategy {
	return []Strategy{
		NewCostco(logger),
		NewWalmart(logger),
		NewKeyFood(logger),
		NewHMart(logger),
		NewTraderJoes(logger),
		NewGeneric(logger),
	}
}
