package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/carbontoken/internal/ledger"
	"github.com/roach88/carbontoken/internal/testutil"
)

func TestUpdate_ResolvesQueued(t *testing.T) {
	h := newHarness(t)
	seedDeliveries(h)
	h.fake.SetResults(testutil.QueueTokens)

	out, _, err := h.run(issueArgs...)
	require.NoError(t, err)
	assert.Contains(t, out, "queued:       3\n")

	h.fake.Resolve("node-1", "uuid-D1:1ZA", "tok-A")

	out, _, err = h.run("update", "--kind", "delivery")
	require.NoError(t, err)
	assert.Contains(t, out, "run:          run-2\n")
	assert.Contains(t, out, "checked:      3\n")
	assert.Contains(t, out, "updated:      1\n")

	byID := map[string]ledger.Entry{}
	for _, e := range ledgerEntries(h, ledger.KindDelivery) {
		byID[e.Key.ID()] = e
	}
	assert.Equal(t, ledger.StatusSuccess, byID["D1:1ZA"].Status)
	assert.Equal(t, "tok-A", byID["D1:1ZA"].TokenID)
	assert.Equal(t, ledger.StatusQueued, byID["D2:1ZB"].Status)
}

func TestUpdate_NothingQueued(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("update", "--kind", "shipment", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"checked": 0`)
	assert.Equal(t, 0, h.fake.StatusCalls())
}

func TestUpdate_UnknownKind(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("update", "--kind", "parcel")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_FLAG]")
}
