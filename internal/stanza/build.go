package stanza

import (
	"bytes"
	"encoding/xml"
	"sort"
)

// NewChatMessage builds an outbound chat message. The extension mapping is
// opaque to the core and serialized as extraParams child elements; markable
// asks the recipient for delivery and read receipts.
func NewChatMessage(to, id string, extension map[string]string, markable bool) *Stanza {
	st := &Stanza{
		XMLName: xml.Name{Local: "message"},
		ID:      id,
		To:      to,
		Type:    "chat",
	}
	if len(extension) > 0 {
		st.Nodes = append(st.Nodes, extraParams(extension))
	}
	if markable {
		st.Nodes = append(st.Nodes, Node{XMLName: xml.Name{Space: NSChatMarker, Local: "markable"}})
	}
	return st
}

// NewSystemMessage builds an outbound system message. System messages use
// the headline type tag and carry no markable semantics.
func NewSystemMessage(to, id string, extension map[string]string) *Stanza {
	st := &Stanza{
		XMLName: xml.Name{Local: "message"},
		ID:      id,
		To:      to,
		Type:    "headline",
	}
	if len(extension) > 0 {
		st.Nodes = append(st.Nodes, extraParams(extension))
	}
	return st
}

// NewDelivered builds a delivery receipt referencing an earlier message.
func NewDelivered(to, messageID, dialogID string) *Stanza {
	return receipt(to, messageID, dialogID, NSReceipts, "received")
}

// NewRead builds a read receipt referencing an earlier message.
func NewRead(to, messageID, dialogID string) *Stanza {
	return receipt(to, messageID, dialogID, NSChatMarker, "displayed")
}

func receipt(to, messageID, dialogID, space, local string) *Stanza {
	return &Stanza{
		XMLName: xml.Name{Local: "message"},
		ID:      GenerateID(),
		To:      to,
		Type:    "chat",
		Nodes: []Node{
			{
				XMLName: xml.Name{Space: space, Local: local},
				Attrs:   []xml.Attr{{Name: xml.Name{Local: "id"}, Value: messageID}},
			},
			extraParams(map[string]string{"dialog_id": dialogID}),
		},
	}
}

// NewTyping builds a typing notification toggling the composing flag.
func NewTyping(to string, composing bool) *Stanza {
	state := "paused"
	if composing {
		state = "composing"
	}
	return &Stanza{
		XMLName: xml.Name{Local: "message"},
		To:      to,
		Type:    "chat",
		Nodes:   []Node{{XMLName: xml.Name{Space: NSChatState, Local: state}}},
	}
}

// NewPresence builds an available presence announcement.
func NewPresence() *Stanza {
	return &Stanza{XMLName: xml.Name{Local: "presence"}}
}

// NewIQ builds a get or set request carrying a single query payload. The
// correlation id is assigned later, when the request is issued.
func NewIQ(typ string, query Node) *Stanza {
	return &Stanza{
		XMLName: xml.Name{Local: "iq"},
		Type:    typ,
		Nodes:   []Node{query},
	}
}

// extraParams serializes the extension mapping with deterministic key order.
func extraParams(extension map[string]string) Node {
	keys := make([]string, 0, len(extension))
	for k := range extension {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		buf.WriteString("<" + k + ">")
		xml.EscapeText(&buf, []byte(extension[k]))
		buf.WriteString("</" + k + ">")
	}
	return Node{XMLName: xml.Name{Local: "extraParams"}, Inner: buf.Bytes()}
}
