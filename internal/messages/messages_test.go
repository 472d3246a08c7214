package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/portbus/internal/core/comms"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind comms.Kind
		wantErr  string
	}{
		{name: "event", input: "grow", wantKind: comms.KindEvent},
		{name: "request", input: "stock-listings-request", wantKind: comms.KindRequest},
		{name: "typo", input: "stock-listing-request", wantErr: `did you mean "stock-listings-request"`},
		{name: "unrelated", input: "hack", wantErr: `unknown message type "hack"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := Lookup(tt.input)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, ErrUnknownType)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, info.Name)
			assert.Equal(t, tt.wantKind, info.Kind)
		})
	}
}

func TestSuggest_NothingClose(t *testing.T) {
	assert.Empty(t, Suggest("zzzzzzzzzzzzzzzzzzzzzzzz"))
}

func TestAll_ReturnsCopy(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)
	all[0].Name = "changed"
	assert.NotEqual(t, "changed", All()[0].Name)
}

func TestGrowEvent_RoundTrip(t *testing.T) {
	ev, err := GrowEvent.Event(Grow{Status: GrowStarted, Target: "n00dles", Threads: 8})
	require.NoError(t, err)

	data, err := comms.Encode(ev)
	require.NoError(t, err)
	msg, err := comms.Decode(data)
	require.NoError(t, err)

	got, err := GrowEvent.Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, Grow{Status: GrowStarted, Target: "n00dles", Threads: 8}, got)
}
