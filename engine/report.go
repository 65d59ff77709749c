package engine

import (
	"github.com/shopspring/decimal"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// AccountSnapshot is a point-in-time view of a single account for the
// final report. Available is the derived balance, materialized here so
// sinks never recompute it.
type AccountSnapshot struct {
	Client    ClientID        `json:"client"`
	Available decimal.Decimal `json:"available"`
	Held      decimal.Decimal `json:"held"`
	Total     decimal.Decimal `json:"total"`
	Locked    bool            `json:"locked"`
}

// Snapshot captures the account's current balances.
func (a *Account) Snapshot() AccountSnapshot {
	return AccountSnapshot{
		Client:    a.ClientID,
		Available: a.Available(),
		Held:      a.Held,
		Total:     a.Total,
		Locked:    a.Locked,
	}
}

// Report returns a snapshot of every account ever touched, sorted by
// client id for deterministic output. The contract requires no ordering;
// sorting keeps runs diffable.
func (e *Engine) Report() []AccountSnapshot {
	clients := maps.Keys(e.accounts)
	slices.Sort(clients)

	snapshots := make([]AccountSnapshot, 0, len(clients))
	for _, client := range clients {
		snapshots = append(snapshots, e.accounts[client].Snapshot())
	}
	return snapshots
}
