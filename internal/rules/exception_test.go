package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wardenlab/warden/internal/oracle"
	"github.com/wardenlab/warden/internal/wire"
)

func topics(words ...wire.Word) []wire.Word {
	return words
}

func TestHasException_MatchesTopicZeroAndEmitter(t *testing.T) {
	log := []oracle.Event{
		{Emitter: vaultA, Topics: topics(SigDebtSocialized)},
	}

	assert.True(t, HasException(log, vaultA, SigDebtSocialized))
	assert.False(t, HasException(log, vaultB, SigDebtSocialized), "wrong emitter")
	assert.False(t, HasException(log, vaultA, SigExcessClaimed), "wrong signature")
}

func TestHasException_AnyOneSignatureSuffices(t *testing.T) {
	log := []oracle.Event{
		{Emitter: vaultA, Topics: topics(SigInterestAccrued)},
	}

	assert.True(t, HasException(log, vaultA, SigDebtSocialized, SigInterestAccrued))
}

// A log entry with fewer topics than expected is non-matching, never
// an error.
func TestHasException_ToleratesEmptyTopics(t *testing.T) {
	log := []oracle.Event{
		{Emitter: vaultA, Topics: nil},
		{Emitter: vaultA, Topics: topics(SigDebtSocialized)},
	}

	assert.True(t, HasException(log, vaultA, SigDebtSocialized))
}

// Topic zero must match exactly; a signature appearing in a later
// topic position does not count.
func TestHasException_OnlyTopicZero(t *testing.T) {
	log := []oracle.Event{
		{Emitter: vaultA, Topics: topics(SigExcessClaimed, SigDebtSocialized)},
	}

	assert.False(t, HasException(log, vaultA, SigDebtSocialized))
}

func TestHasException_EmptyLog(t *testing.T) {
	assert.False(t, HasException(nil, vaultA, SigDebtSocialized))
}
