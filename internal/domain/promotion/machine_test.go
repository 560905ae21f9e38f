package promotion

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/statekit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

var allEvents = []statekit.EventType{
	EventApprove,
	EventStartDeploy,
	EventDeploySucceeded,
	EventSupersede,
	EventSkip,
	EventVeto,
	EventUnveto,
}

func TestNewLifecycle(t *testing.T) {
	l, err := NewLifecycle()
	require.NoError(t, err)
	require.NotNil(t, l)

	// Every stored status must be reachable from PENDING.
	for _, s := range AllStatuses() {
		_, ok := l.paths[s]
		assert.True(t, ok, "no path to %s", s)
	}
}

func TestLifecycle_Transition(t *testing.T) {
	l, err := NewLifecycle()
	require.NoError(t, err)

	tests := []struct {
		from  Status
		event statekit.EventType
		want  Status
	}{
		{StatusPending, EventApprove, StatusApproved},
		{StatusApproved, EventStartDeploy, StatusDeploying},
		{StatusDeploying, EventDeploySucceeded, StatusCurrent},
		{StatusDeploying, EventStartDeploy, StatusDeploying},
		{StatusCurrent, EventSupersede, StatusPrevious},
		{StatusCurrent, EventDeploySucceeded, StatusCurrent},
		{StatusApproved, EventSkip, StatusSkipped},
		{StatusPrevious, EventDeploySucceeded, StatusCurrent},
		{StatusSkipped, EventStartDeploy, StatusDeploying},
		{StatusCurrent, EventVeto, StatusVetoed},
		{StatusVetoed, EventUnveto, StatusApproved},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.event), func(t *testing.T) {
			got, err := l.Transition(tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLifecycle_TransitionRejected(t *testing.T) {
	l, err := NewLifecycle()
	require.NoError(t, err)

	tests := []struct {
		from  Status
		event statekit.EventType
	}{
		{StatusVetoed, EventApprove},
		{StatusVetoed, EventDeploySucceeded},
		{StatusVetoed, EventVeto},
		{StatusCurrent, EventSkip},
		{StatusPrevious, EventSupersede},
		{StatusApproved, EventApprove},
		{StatusApproved, EventUnveto},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.event), func(t *testing.T) {
			got, err := l.Transition(tt.from, tt.event)
			require.Error(t, err)
			assert.Equal(t, tt.from, got)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
			assert.True(t, rperrors.IsKind(err, rperrors.KindState))

			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.event, te.Event)
		})
	}
}

// The machine built from the table reaches the table's target for every accepted event.
func TestLifecycle_MachineFollowsTable(t *testing.T) {
	l, err := NewLifecycle()
	require.NoError(t, err)

	for _, from := range AllStatuses() {
		for _, event := range allEvents {
			if !from.CanTransition(event) {
				continue
			}
			got, err := l.Transition(from, event)
			require.NoError(t, err, "%s on %s", from, event)
			assert.Equal(t, transitions[from][event], got)
		}
	}
}

func TestDefaultLifecycle(t *testing.T) {
	a, err := DefaultLifecycle()
	require.NoError(t, err)
	b, err := DefaultLifecycle()
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestExportXStateJSON(t *testing.T) {
	data, err := ExportXStateJSON()
	require.NoError(t, err)

	var xstate XStateJSON
	require.NoError(t, json.Unmarshal(data, &xstate))

	assert.Equal(t, "promotion", xstate.ID)
	assert.Equal(t, "PENDING", xstate.Initial)
	assert.Len(t, xstate.States, len(AllStatuses()))
	assert.Equal(t, "APPROVED", xstate.States["VETOED"].On["UNVETO"].Target)
	assert.Equal(t, "PREVIOUS", xstate.States["CURRENT"].On["SUPERSEDE"].Target)
}
