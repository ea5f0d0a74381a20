package stanza

import (
	"encoding/xml"
	"testing"
)

func parse(t *testing.T, raw string) *Stanza {
	t.Helper()
	var st Stanza
	if err := xml.Unmarshal([]byte(raw), &st); err != nil {
		t.Fatalf("failed to parse stanza: %v", err)
	}
	return &st
}

func TestClassifyChatMessage(t *testing.T) {
	st := parse(t, `<message xmlns='jabber:client' id='m1' from='101-92@chat.example.com/mobile' type='chat'><extraParams><param1>value1</param1><param2>value2</param2></extraParams><markable xmlns='urn:xmpp:chat-markers:0'/></message>`)

	if kind := Classify(st); kind != KindChatMessage {
		t.Fatalf("expected chat-message, got %s", kind)
	}

	userID, msg, err := DecodeMessage(st)
	if err != nil {
		t.Fatalf("DecodeMessage returned error: %v", err)
	}
	if userID != 101 {
		t.Fatalf("expected sender 101, got %d", userID)
	}
	if msg.ID != "m1" {
		t.Fatalf("expected echoed id m1, got %q", msg.ID)
	}
	if msg.Type != "chat" {
		t.Fatalf("expected type chat, got %q", msg.Type)
	}
	if !msg.Markable {
		t.Fatalf("expected markable message")
	}
	if msg.Extension["param1"] != "value1" || msg.Extension["param2"] != "value2" {
		t.Fatalf("unexpected extension: %v", msg.Extension)
	}
}

func TestDecodeMessageWithoutMarkable(t *testing.T) {
	st := parse(t, `<message id='m2' from='101-92@chat.example.com' type='chat'><extraParams><k>v</k></extraParams></message>`)

	_, msg, err := DecodeMessage(st)
	if err != nil {
		t.Fatalf("DecodeMessage returned error: %v", err)
	}
	if msg.Markable {
		t.Fatalf("absent markable element must decode as false")
	}
}

func TestClassifySystemMessage(t *testing.T) {
	st := parse(t, `<message id='s1' from='101-92@chat.example.com' type='headline'><extraParams><param1>value1</param1></extraParams></message>`)

	if kind := Classify(st); kind != KindSystemMessage {
		t.Fatalf("expected system-message, got %s", kind)
	}
	_, msg, err := DecodeMessage(st)
	if err != nil {
		t.Fatalf("DecodeMessage returned error: %v", err)
	}
	if msg.Type != "system" {
		t.Fatalf("expected type system, got %q", msg.Type)
	}
}

func TestClassifyDeliveredReceipt(t *testing.T) {
	st := parse(t, `<message from='101-92@chat.example.com' type='chat'><received xmlns='urn:xmpp:receipts' id='507f1f77bcf86cd799439011'/><extraParams><dialog_id>507f191e810c19729de860ea</dialog_id></extraParams></message>`)

	if kind := Classify(st); kind != KindDelivered {
		t.Fatalf("expected delivered, got %s", kind)
	}

	r, err := DecodeReceipt(st)
	if err != nil {
		t.Fatalf("DecodeReceipt returned error: %v", err)
	}
	if r.MessageID != "507f1f77bcf86cd799439011" {
		t.Fatalf("unexpected message id %q", r.MessageID)
	}
	if r.DialogID != "507f191e810c19729de860ea" {
		t.Fatalf("unexpected dialog id %q", r.DialogID)
	}
	if r.UserID != 101 {
		t.Fatalf("unexpected user id %d", r.UserID)
	}
}

func TestClassifyReadReceipt(t *testing.T) {
	st := parse(t, `<message from='101-92@chat.example.com' type='chat'><displayed xmlns='urn:xmpp:chat-markers:0' id='m9'/><extraParams><dialog_id>d9</dialog_id></extraParams></message>`)

	if kind := Classify(st); kind != KindRead {
		t.Fatalf("expected read, got %s", kind)
	}
}

func TestReceiptMissingDialogIDIsUnknown(t *testing.T) {
	st := parse(t, `<message from='101-92@chat.example.com' type='chat'><received xmlns='urn:xmpp:receipts' id='m9'/></message>`)

	if kind := Classify(st); kind != KindUnknown {
		t.Fatalf("malformed receipt must classify unknown, got %s", kind)
	}
}

func TestReceiptMissingSenderIsUnknown(t *testing.T) {
	st := parse(t, `<message type='chat'><received xmlns='urn:xmpp:receipts' id='m9'/><extraParams><dialog_id>d9</dialog_id></extraParams></message>`)

	if kind := Classify(st); kind != KindUnknown {
		t.Fatalf("receipt without sender must classify unknown, got %s", kind)
	}
}

func TestClassifyTypingPrivate(t *testing.T) {
	st := parse(t, `<message from='101-92@chat.example.com/mobile' type='chat'><composing xmlns='http://jabber.org/protocol/chatstates'/></message>`)

	if kind := Classify(st); kind != KindTyping {
		t.Fatalf("expected typing, got %s", kind)
	}
	ty, err := DecodeTyping(st)
	if err != nil {
		t.Fatalf("DecodeTyping returned error: %v", err)
	}
	if !ty.Composing {
		t.Fatalf("expected composing true")
	}
	if ty.UserID != 101 {
		t.Fatalf("unexpected user id %d", ty.UserID)
	}
	if ty.DialogID != "" {
		t.Fatalf("private typing must carry no dialog id, got %q", ty.DialogID)
	}
}

func TestClassifyStopTypingGroup(t *testing.T) {
	st := parse(t, `<message from='92_507f191e810c19729de860ea@muc.chat.example.com/101' type='groupchat'><paused xmlns='http://jabber.org/protocol/chatstates'/></message>`)

	ty, err := DecodeTyping(st)
	if err != nil {
		t.Fatalf("DecodeTyping returned error: %v", err)
	}
	if ty.Composing {
		t.Fatalf("expected composing false")
	}
	if ty.UserID != 101 {
		t.Fatalf("unexpected user id %d", ty.UserID)
	}
	if ty.DialogID != "507f191e810c19729de860ea" {
		t.Fatalf("unexpected dialog id %q", ty.DialogID)
	}
}

func TestClassifyIQResponse(t *testing.T) {
	st := parse(t, `<iq id='req-1' type='result'><query xmlns='jabber:iq:privacy'/></iq>`)
	if kind := Classify(st); kind != KindResponse {
		t.Fatalf("expected response, got %s", kind)
	}

	st = parse(t, `<iq id='req-2' type='error'/>`)
	if kind := Classify(st); kind != KindResponse {
		t.Fatalf("error iq must classify as response, got %s", kind)
	}
}

func TestClassifyUnknownElement(t *testing.T) {
	st := parse(t, `<widget id='x'/>`)
	if kind := Classify(st); kind != KindUnknown {
		t.Fatalf("expected unknown, got %s", kind)
	}
}

func TestChatMessageBuilderRoundTrip(t *testing.T) {
	out := NewChatMessage("102-92@chat.example.com", "m7", map[string]string{"save_to_history": "1"}, true)
	out.From = "101-92@chat.example.com"

	raw, err := xml.Marshal(out)
	if err != nil {
		t.Fatalf("failed to marshal message: %v", err)
	}

	st := parse(t, string(raw))
	if kind := Classify(st); kind != KindChatMessage {
		t.Fatalf("built message classifies as %s", kind)
	}
	userID, msg, err := DecodeMessage(st)
	if err != nil {
		t.Fatalf("DecodeMessage returned error: %v", err)
	}
	if userID != 101 {
		t.Fatalf("unexpected sender %d", userID)
	}
	if msg.ID != "m7" || !msg.Markable || msg.Extension["save_to_history"] != "1" {
		t.Fatalf("round trip lost fields: %+v", msg)
	}
}

func TestTypingBuilderTogglesState(t *testing.T) {
	on := NewTyping("102-92@chat.example.com", true)
	if on.ChildNS(NSChatState, "composing") == nil {
		t.Fatalf("expected composing element")
	}
	off := NewTyping("102-92@chat.example.com", false)
	if off.ChildNS(NSChatState, "paused") == nil {
		t.Fatalf("expected paused element")
	}
}

func TestSenderAddressMapping(t *testing.T) {
	if got := UserJID(101, 92, "chat.example.com"); got != "101-92@chat.example.com" {
		t.Fatalf("unexpected user address %q", got)
	}

	userID, dialogID, err := Sender("101-92@chat.example.com/mobile")
	if err != nil {
		t.Fatalf("Sender returned error: %v", err)
	}
	if userID != 101 || dialogID != "" {
		t.Fatalf("unexpected sender %d/%q", userID, dialogID)
	}

	if _, _, err := Sender("not-a-user@chat.example.com"); err == nil {
		t.Fatalf("expected error for non-numeric local part")
	}
}
