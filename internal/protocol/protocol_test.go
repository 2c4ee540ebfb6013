package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
)

func TestEncodeEvent_Membership(t *testing.T) {
	req := require.New(t)

	raw, err := EncodeEvent(chat.Event{
		Kind:     chat.KindUserJoined,
		RoomID:   "R1",
		Username: "B",
		Users:    []string{"A", "B"},
	})
	req.NoError(err)
	req.JSONEq(`{"event":"userJoined","data":{"username":"B","roomId":"R1","users":["A","B"]}}`, string(raw))
}

func TestEncodeEvent_Empty_Membership_Is_An_Array(t *testing.T) {
	raw, err := EncodeEvent(chat.Event{Kind: chat.KindUserLeft, RoomID: "R1", Username: "A"})

	require.NoError(t, err)
	require.JSONEq(t, `{"event":"userLeft","data":{"username":"A","roomId":"R1","users":[]}}`, string(raw))
}

func TestEncodeEvent_Message(t *testing.T) {
	raw, err := EncodeEvent(chat.Event{Kind: chat.KindMessageReceived, RoomID: "R1", Username: "A", Message: "hi"})

	require.NoError(t, err)
	require.JSONEq(t, `{"event":"messageReceived","data":{"username":"A","message":"hi"}}`, string(raw))
}

func TestEncodeEvent_History_And_Error(t *testing.T) {
	req := require.New(t)

	raw, err := EncodeEvent(chat.Event{
		Kind:    chat.KindHistory,
		RoomID:  "R1",
		History: []chat.Message{{Seq: 1, Sender: "A", Body: "hi"}},
	})
	req.NoError(err)
	req.JSONEq(`{"event":"history","data":{"roomId":"R1","messages":[{"username":"A","message":"hi","seq":1}]}}`, string(raw))

	raw, err = EncodeEvent(chat.Event{Kind: chat.KindError, Code: chat.CodeNotJoined, Reason: "not joined to a room", Request: EventSendMessage})
	req.NoError(err)
	req.JSONEq(`{"event":"error","data":{"code":"NOT_JOINED","message":"not joined to a room","event":"sendMessage"}}`, string(raw))
}

func TestEncodeEvent_Unknown_Kind(t *testing.T) {
	_, err := EncodeEvent(chat.Event{Kind: "bogus"})
	require.Error(t, err)
}

func TestDecodeEnvelope(t *testing.T) {
	req := require.New(t)

	env, err := DecodeEnvelope([]byte(`{"event":"join","data":{"username":"A","roomId":"R1"}}`))
	req.NoError(err)
	req.Equal(EventJoin, env.Event)

	_, err = DecodeEnvelope([]byte(`not json`))
	req.ErrorIs(err, chat.ErrInvalidEvent)

	_, err = DecodeEnvelope([]byte(`{"data":{}}`))
	req.ErrorIs(err, chat.ErrInvalidEvent)
}

func TestBind_Trims_And_Validates(t *testing.T) {
	req := require.New(t)

	var join JoinRequest
	err := Bind(Envelope{Event: EventJoin, Data: json.RawMessage(`{"username":"  A ","roomId":"R1"}`)}, &join)
	req.NoError(err)
	req.Equal("A", join.Username)

	err = Bind(Envelope{Event: EventJoin, Data: json.RawMessage(`{"username":"   ","roomId":"R1"}`)}, &join)
	req.ErrorIs(err, chat.ErrInvalidEvent)

	long := strings.Repeat("x", 65)
	err = Bind(Envelope{Event: EventJoin, Data: json.RawMessage(`{"username":"` + long + `","roomId":"R1"}`)}, &join)
	req.ErrorIs(err, chat.ErrInvalidEvent)

	var send SendMessageRequest
	err = Bind(Envelope{Event: EventSendMessage, Data: json.RawMessage(`{"message":""}`)}, &send)
	req.ErrorIs(err, chat.ErrInvalidEvent)

	var leave LeaveRoomRequest
	req.NoError(Bind(Envelope{Event: EventLeaveRoom}, &leave))

	var history HistoryRequest
	err = Bind(Envelope{Event: EventHistory, Data: json.RawMessage(`{"limit":501}`)}, &history)
	req.ErrorIs(err, chat.ErrInvalidEvent)
}

func TestCheckBody(t *testing.T) {
	assert.NoError(t, CheckBody("héllo", 5))
	assert.ErrorIs(t, CheckBody("héllo!", 5), chat.ErrInvalidEvent)
	assert.ErrorIs(t, CheckBody(string([]byte{0xff}), 0), chat.ErrInvalidEvent)
	assert.NoError(t, CheckBody(strings.Repeat("x", 10000), 0))
}

func TestDecodeStream_Reads_Batched_Envelopes(t *testing.T) {
	req := require.New(t)
	first, err := Encode(EventMessageReceived, MessageReceived{Username: "A", Message: "one"})
	req.NoError(err)
	second, err := Encode(EventMessageReceived, MessageReceived{Username: "A", Message: "two"})
	req.NoError(err)

	batch := append(append(first, '\n'), second...)
	envs, err := DecodeStream(batch)
	req.NoError(err)
	req.Len(envs, 2)

	var msg MessageReceived
	req.NoError(json.Unmarshal(envs[1].Data, &msg))
	req.Equal("two", msg.Message)
}
