package comms

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nestedPayload struct {
	Name   string           `json:"name"`
	Counts []int            `json:"counts"`
	Nested []map[string]any `json:"nested"`
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	typ := Define[nestedPayload]("nested", KindRequest)
	in := nestedPayload{
		Name:   "n00dles",
		Counts: []int{1, 2, 3},
		Nested: []map[string]any{{"a": []any{"x", "y"}}, {"b": 2.5}},
	}

	req, err := typ.Request("hacker", in)
	require.NoError(t, err)

	data, err := Encode(req)
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)

	got, ok := msg.(Request)
	require.True(t, ok, "expected Request, got %T", msg)
	assert.Equal(t, "nested", got.MessageType())
	assert.Equal(t, "hacker", got.Sender())

	out, err := typ.Decode(got)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncode_FlatRecord(t *testing.T) {
	ev, err := NewEvent("grow", Payload{"status": json.RawMessage(`"COMPLETE"`)})
	require.NoError(t, err)

	data, err := Encode(ev)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, map[string]any{
		"messageType": "grow",
		"messageKind": "event",
		"status":      "COMPLETE",
	}, record)
}

func TestDecode_NullAndAbsentFields(t *testing.T) {
	msg, err := Decode([]byte(`{"messageType":"grow","target":null}`))
	require.NoError(t, err)

	p := msg.Payload()
	assert.True(t, p.Has("target"))
	assert.False(t, p.Has("threads"))

	var target *string
	found, err := p.Get("target", &target)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Nil(t, target)

	data, err := Encode(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"target":null`)
	assert.NotContains(t, string(data), "threads")
}

func TestDecode_MissingKind(t *testing.T) {
	msg, err := Decode([]byte(`{"messageType":"grow"}`))
	require.NoError(t, err)
	assert.Equal(t, KindEvent, msg.Kind())
	assert.IsType(t, Event{}, msg)

	msg, err = Decode([]byte(`{"messageType":"stock-listings-request","sender":"S"}`))
	require.NoError(t, err)
	req, ok := msg.(Request)
	require.True(t, ok, "a record naming a sender is a request, got %T", msg)
	assert.Equal(t, "S", req.Sender())
	assert.Empty(t, req.Payload().Keys())

	data, err := Encode(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"messageType":"stock-listings-request","messageKind":"request","sender":"S"}`, string(data))
}

func TestPayload_KindIsADomainField(t *testing.T) {
	ev, err := NewEvent("grow", Payload{"kind": json.RawMessage(`"weaken"`)})
	require.NoError(t, err)

	data, err := Encode(ev)
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, KindEvent, msg.Kind())

	var kind string
	found, err := msg.Payload().Get("kind", &kind)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "weaken", kind)

	msg, err = Decode([]byte(`{"messageType":"grow","kind":"weaken"}`))
	require.NoError(t, err)
	assert.True(t, msg.Payload().Has("kind"))
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "not json", data: "grow"},
		{name: "array", data: `[{"messageType":"grow"}]`},
		{name: "truncated", data: `{"messageType":"grow"`},
		{name: "missing messageType", data: `{"messageKind":"event"}`},
		{name: "empty messageType", data: `{"messageType":""}`},
		{name: "non-string messageType", data: `{"messageType":7}`},
		{name: "unknown kind", data: `{"messageType":"grow","messageKind":"shout"}`},
		{name: "non-string sender", data: `{"messageType":"grow","messageKind":"request","sender":{}}`},
		{name: "non-string sender without kind", data: `{"messageType":"grow","sender":7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestEncode_SenderOnlyOnRequests(t *testing.T) {
	resp, err := NewResponse("stock-listings-response", nil)
	require.NoError(t, err)

	data, err := Encode(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sender")

	req, err := NewRequest("stock-listings-request", "", nil)
	require.NoError(t, err)

	data, err = Encode(req)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sender")
}
