// Package stanza models the discrete protocol units exchanged over the chat
// connection and the rules for classifying and decoding inbound traffic.
package stanza

import (
	"bytes"
	"crypto/rand"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"mellium.im/xmpp/jid"
)

// Namespaces recognized on the wire.
const (
	NSReceipts   = "urn:xmpp:receipts"
	NSChatMarker = "urn:xmpp:chat-markers:0"
	NSChatState  = "http://jabber.org/protocol/chatstates"
	NSPrivacy    = "jabber:iq:privacy"
	NSRoster     = "jabber:iq:roster"
)

// Stanza is one protocol unit: a message, presence or iq element together
// with its addressing attributes and child elements.
type Stanza struct {
	XMLName xml.Name
	ID      string `xml:"id,attr,omitempty"`
	From    string `xml:"from,attr,omitempty"`
	To      string `xml:"to,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Nodes   []Node `xml:",any"`
}

// Node is a child element kept in generic form: name, attributes and raw
// inner XML. Nested content is reparsed on demand via Children.
type Node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   []byte     `xml:",innerxml"`
}

// Child returns the first child element with the given local name,
// regardless of namespace, or nil.
func (s *Stanza) Child(local string) *Node {
	for i := range s.Nodes {
		if s.Nodes[i].XMLName.Local == local {
			return &s.Nodes[i]
		}
	}
	return nil
}

// ChildNS returns the first child element matching both namespace and local
// name, or nil.
func (s *Stanza) ChildNS(space, local string) *Node {
	for i := range s.Nodes {
		if s.Nodes[i].XMLName.Space == space && s.Nodes[i].XMLName.Local == local {
			return &s.Nodes[i]
		}
	}
	return nil
}

// Attr returns the value of the named attribute, or "".
func (n *Node) Attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Text returns the character data of the element.
func (n *Node) Text() string {
	var buf bytes.Buffer
	d := xml.NewDecoder(bytes.NewReader(n.Inner))
	for {
		tok, err := d.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			buf.Write(cd)
		}
	}
	return buf.String()
}

// Children reparses the inner XML into child nodes.
func (n *Node) Children() []Node {
	var wrapper struct {
		Nodes []Node `xml:",any"`
	}
	raw := append(append([]byte("<w>"), n.Inner...), []byte("</w>")...)
	if err := xml.Unmarshal(raw, &wrapper); err != nil {
		return nil
	}
	return wrapper.Nodes
}

// Child returns the first nested element with the given local name, or nil.
func (n *Node) Child(local string) *Node {
	children := n.Children()
	for i := range children {
		if children[i].XMLName.Local == local {
			return &children[i]
		}
	}
	return nil
}

// GenerateID returns a random stanza identifier.
func GenerateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}

// UserJID builds the wire address of a user account.
func UserJID(userID, appID int, domain string) string {
	return fmt.Sprintf("%d-%d@%s", userID, appID, domain)
}

// Sender resolves the user behind a stanza "from" address. For group dialog
// addresses (muc subdomain, local part <appID>_<dialogID>) the sending user
// is carried in the resource and the dialog in the local part; for direct
// addresses the user is the local part and dialogID is empty.
func Sender(addr string) (userID int, dialogID string, err error) {
	j, err := jid.Parse(addr)
	if err != nil {
		return 0, "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	local := j.Localpart()
	if strings.HasPrefix(j.Domainpart(), "muc.") {
		_, dialogID, ok := strings.Cut(local, "_")
		if !ok {
			return 0, "", fmt.Errorf("malformed dialog address %q", addr)
		}
		userID, err := strconv.Atoi(j.Resourcepart())
		if err != nil {
			return 0, "", fmt.Errorf("malformed dialog sender %q: %w", addr, err)
		}
		return userID, dialogID, nil
	}
	id, _, _ := strings.Cut(local, "-")
	userID, err = strconv.Atoi(id)
	if err != nil {
		return 0, "", fmt.Errorf("malformed user address %q: %w", addr, err)
	}
	return userID, "", nil
}
