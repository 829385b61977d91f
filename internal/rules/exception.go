package rules

import (
	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/wire"
)

// Exception signatures: topic-zero values whose presence in the event
// log, emitted by the resource under evaluation, legitimizes an
// otherwise-violating state transition.
var (
	// SigDebtSocialized: a defaulted position's debt was spread across
	// claim holders. Legitimizes health and rate degradation.
	SigDebtSocialized = wire.MustParseWord(
		"0x5cdc55bdeb30ef7bbeff6feab0e708d97ef2406962e07d5e2b4dd7ad3e18e043")

	// SigInterestAccrued: interest or fees were accrued into the
	// claim supply, diluting holders. Legitimizes supply movement.
	SigInterestAccrued = wire.MustParseWord(
		"0x9d9a292376cbee29362ba1c84ea2ad833dd8cfa4d2ab770283354dd283ae6d95")

	// SigExcessClaimed: assets in excess of the internal ledger were
	// skimmed. Legitimizes an observable-balance decrease.
	SigExcessClaimed = wire.MustParseWord(
		"0x3a9f7e6540b1cd8a3527034cdb9f1bd3a75c4f7c0b0b2f0f35e164cfbbf1f4a2")
)

// HasException reports whether the log contains an event emitted by
// the given resource whose topic zero matches any of the signatures.
//
// Pure function of the log. Entries with no topics are non-matching,
// not an error. Any one recognized signature suffices.
func HasException(log []oracle.Event, emitter wire.Address, sigs ...wire.Word) bool {
	for _, ev := range log {
		if ev.Emitter != emitter || len(ev.Topics) == 0 {
			continue
		}
		for _, sig := range sigs {
			if ev.Topics[0] == sig {
				return true
			}
		}
	}
	return false
}
