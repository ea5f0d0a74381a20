package dispatch

import (
	"encoding/xml"
	"testing"

	"github.com/meszmate/quickchat/internal/stanza"
)

type fakeResolver struct {
	resolved []string
	known    map[string]bool
}

func (r *fakeResolver) Resolve(st *stanza.Stanza) bool {
	r.resolved = append(r.resolved, st.ID)
	return r.known[st.ID]
}

func parse(t *testing.T, raw string) *stanza.Stanza {
	t.Helper()
	var st stanza.Stanza
	if err := xml.Unmarshal([]byte(raw), &st); err != nil {
		t.Fatalf("failed to parse stanza: %v", err)
	}
	return &st
}

func TestDispatchChatMessageOnce(t *testing.T) {
	d := New(&fakeResolver{})

	calls := 0
	var gotUser int
	var gotMsg stanza.Message
	d.OnMessage(func(userID int, msg stanza.Message) {
		calls++
		gotUser = userID
		gotMsg = msg
	})

	st := parse(t, `<message id='m1' from='101-92@chat.example.com' type='chat'><extraParams><param1>value1</param1></extraParams><markable xmlns='urn:xmpp:chat-markers:0'/></message>`)
	d.Dispatch(st)

	if calls != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", calls)
	}
	if gotUser != 101 {
		t.Fatalf("unexpected sender %d", gotUser)
	}
	if gotMsg.ID != "m1" || !gotMsg.Markable || gotMsg.Extension["param1"] != "value1" {
		t.Fatalf("unexpected message: %+v", gotMsg)
	}
}

func TestLastListenerWins(t *testing.T) {
	d := New(&fakeResolver{})

	firstCalled := false
	d.OnTyping(func(bool, int, string) { firstCalled = true })

	var got bool
	d.OnTyping(func(composing bool, userID int, dialogID string) { got = composing })

	d.Dispatch(parse(t, `<message from='101-92@chat.example.com' type='chat'><composing xmlns='http://jabber.org/protocol/chatstates'/></message>`))

	if firstCalled {
		t.Fatalf("replaced listener must not be invoked")
	}
	if !got {
		t.Fatalf("expected current listener to receive composing=true")
	}
}

func TestReceiptsRouteToTheirOwnListeners(t *testing.T) {
	d := New(&fakeResolver{})

	var delivered, read int
	d.OnDelivered(func(messageID, dialogID string, userID int) {
		delivered++
		if messageID != "m1" || dialogID != "d1" || userID != 101 {
			t.Fatalf("unexpected delivery fields %q %q %d", messageID, dialogID, userID)
		}
	})
	d.OnRead(func(messageID, dialogID string, userID int) { read++ })

	d.Dispatch(parse(t, `<message from='101-92@chat.example.com' type='chat'><received xmlns='urn:xmpp:receipts' id='m1'/><extraParams><dialog_id>d1</dialog_id></extraParams></message>`))
	d.Dispatch(parse(t, `<message from='101-92@chat.example.com' type='chat'><displayed xmlns='urn:xmpp:chat-markers:0' id='m1'/><extraParams><dialog_id>d1</dialog_id></extraParams></message>`))

	if delivered != 1 || read != 1 {
		t.Fatalf("expected one delivered and one read dispatch, got %d/%d", delivered, read)
	}
}

func TestResponseRoutedToResolver(t *testing.T) {
	r := &fakeResolver{known: map[string]bool{"req-1": true}}
	d := New(r)

	d.Dispatch(parse(t, `<iq id='req-1' type='result'/>`))
	d.Dispatch(parse(t, `<iq id='stale' type='result'/>`))

	if len(r.resolved) != 2 {
		t.Fatalf("expected both responses offered to resolver, got %v", r.resolved)
	}
}

func TestUnknownStanzaDropped(t *testing.T) {
	d := New(&fakeResolver{})
	d.OnMessage(func(int, stanza.Message) { t.Fatalf("unknown stanza must not reach listeners") })

	d.Dispatch(parse(t, `<widget id='x'/>`))
	d.Dispatch(parse(t, `<message from='101-92@chat.example.com'><received xmlns='urn:xmpp:receipts' id='m1'/></message>`))
}

func TestDispatchWithoutListenerDoesNotPanic(t *testing.T) {
	d := New(&fakeResolver{})
	d.Dispatch(parse(t, `<message id='m1' from='101-92@chat.example.com' type='chat'/>`))
}
