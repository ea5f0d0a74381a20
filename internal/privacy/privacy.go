// Package privacy implements the list-management protocol: named, ordered
// allow/deny rule sets negotiated over correlated request/response
// exchanges.
package privacy

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/meszmate/quickchat/internal/correlate"
	"github.com/meszmate/quickchat/internal/stanza"
)

// Action decides whether a matched user may exchange stanzas with the
// account.
type Action string

const (
	Allow Action = "allow"
	Deny  Action = "deny"
)

// Item is one rule. Order within a list is significant: the first matching
// rule wins.
type Item struct {
	UserID int
	Action Action
}

// List is a named, ordered rule set. It is mutated only by full replace.
type List struct {
	Name  string
	Items []Item
}

// Name is a list name holding the default or active role. An empty Value
// with Declared set means the account explicitly declined use of any list
// for that role.
type Name struct {
	Value    string
	Declared bool
}

// Directory describes the account's lists and which hold the default and
// active roles.
type Directory struct {
	Default Name
	Active  Name
	Lists   []string
}

// Result is the acknowledgement for operations whose response carries no
// structured list payload.
type Result struct {
	Type string
}

// OK reports whether the server acknowledged the operation.
func (r Result) OK() bool { return r.Type == "result" }

// Manager issues privacy-list operations over the stanza correlator. Every
// operation shares the correlator's failure path: a timeout or connection
// loss mid-flight surfaces as the correlator's error.
type Manager struct {
	corr    *correlate.Correlator
	timeout time.Duration
	addr    func(userID int) string
}

// NewManager creates a manager. addr maps a user id to its wire address.
func NewManager(corr *correlate.Correlator, timeout time.Duration, addr func(userID int) string) *Manager {
	return &Manager{corr: corr, timeout: timeout, addr: addr}
}

// Create uploads a new list with its full item sequence.
func (m *Manager) Create(ctx context.Context, list List) (List, error) {
	return m.set(ctx, list)
}

// Update replaces an existing list. The item sequence is sent in full and
// its ordering is preserved verbatim in the returned list.
func (m *Manager) Update(ctx context.Context, list List) (List, error) {
	return m.set(ctx, list)
}

func (m *Manager) set(ctx context.Context, list List) (List, error) {
	if list.Name == "" {
		return List{}, errors.New("privacy list name must not be empty")
	}

	query := m.listQuery(list)
	resp, err := m.corr.Request(ctx, stanza.NewIQ("set", query), m.timeout)
	if err != nil {
		return List{}, err
	}
	if resp.Type != "result" {
		return List{}, respError(resp)
	}

	// The acknowledgement carries no list payload; echo the submitted
	// sequence back through the wire decoder so callers observe exactly
	// what the server accepted.
	return decodeList(findList(&query, list.Name))
}

// Get fetches a list by name. A list with zero items is valid.
func (m *Manager) Get(ctx context.Context, name string) (List, error) {
	query := stanza.Node{
		XMLName: xml.Name{Space: stanza.NSPrivacy, Local: "query"},
		Inner: nodeBytes(stanza.Node{
			XMLName: xml.Name{Local: "list"},
			Attrs:   []xml.Attr{{Name: xml.Name{Local: "name"}, Value: name}},
		}),
	}

	resp, err := m.corr.Request(ctx, stanza.NewIQ("get", query), m.timeout)
	if err != nil {
		return List{}, err
	}
	if resp.Type != "result" {
		return List{}, respError(resp)
	}

	q := resp.ChildNS(stanza.NSPrivacy, "query")
	if q == nil {
		return List{}, fmt.Errorf("response carries no privacy query")
	}
	return decodeList(findList(q, name))
}

// Delete removes a list by name. The acknowledgement carries no structured
// payload, so the raw result type is returned for inspection.
func (m *Manager) Delete(ctx context.Context, name string) (Result, error) {
	query := stanza.Node{
		XMLName: xml.Name{Space: stanza.NSPrivacy, Local: "query"},
		Inner: nodeBytes(stanza.Node{
			XMLName: xml.Name{Local: "list"},
			Attrs:   []xml.Attr{{Name: xml.Name{Local: "name"}, Value: name}},
		}),
	}
	return m.ack(ctx, stanza.NewIQ("set", query))
}

// Names lists the account's privacy lists and the current default and
// active roles.
func (m *Manager) Names(ctx context.Context) (Directory, error) {
	query := stanza.Node{XMLName: xml.Name{Space: stanza.NSPrivacy, Local: "query"}}

	resp, err := m.corr.Request(ctx, stanza.NewIQ("get", query), m.timeout)
	if err != nil {
		return Directory{}, err
	}
	if resp.Type != "result" {
		return Directory{}, respError(resp)
	}

	q := resp.ChildNS(stanza.NSPrivacy, "query")
	if q == nil {
		return Directory{}, fmt.Errorf("response carries no privacy query")
	}

	var dir Directory
	for _, n := range q.Children() {
		switch n.XMLName.Local {
		case "default":
			dir.Default = Name{Value: n.Attr("name"), Declared: true}
		case "active":
			dir.Active = Name{Value: n.Attr("name"), Declared: true}
		case "list":
			dir.Lists = append(dir.Lists, n.Attr("name"))
		}
	}
	return dir, nil
}

// SetDefault declares which list holds the default role. An empty name
// declines the use of any default list.
func (m *Manager) SetDefault(ctx context.Context, name string) (Result, error) {
	return m.setRole(ctx, "default", name)
}

// SetActive declares which list holds the active role. An empty name
// declines the use of any active list.
func (m *Manager) SetActive(ctx context.Context, name string) (Result, error) {
	return m.setRole(ctx, "active", name)
}

func (m *Manager) setRole(ctx context.Context, role, name string) (Result, error) {
	query := stanza.Node{
		XMLName: xml.Name{Space: stanza.NSPrivacy, Local: "query"},
		Inner: nodeBytes(stanza.Node{
			XMLName: xml.Name{Local: role},
			Attrs:   []xml.Attr{{Name: xml.Name{Local: "name"}, Value: name}},
		}),
	}
	return m.ack(ctx, stanza.NewIQ("set", query))
}

func (m *Manager) ack(ctx context.Context, req *stanza.Stanza) (Result, error) {
	resp, err := m.corr.Request(ctx, req, m.timeout)
	if err != nil {
		return Result{}, err
	}
	return Result{Type: resp.Type}, nil
}

// listQuery serializes a full list into the privacy query payload.
func (m *Manager) listQuery(list List) stanza.Node {
	var items bytes.Buffer
	for i, item := range list.Items {
		items.Write(nodeBytes(stanza.Node{
			XMLName: xml.Name{Local: "item"},
			Attrs: []xml.Attr{
				{Name: xml.Name{Local: "type"}, Value: "jid"},
				{Name: xml.Name{Local: "value"}, Value: m.addr(item.UserID)},
				{Name: xml.Name{Local: "action"}, Value: string(item.Action)},
				{Name: xml.Name{Local: "order"}, Value: strconv.Itoa(i + 1)},
			},
			Inner: []byte("<message/><presence-in/><presence-out/><iq/>"),
		}))
	}

	return stanza.Node{
		XMLName: xml.Name{Space: stanza.NSPrivacy, Local: "query"},
		Inner: nodeBytes(stanza.Node{
			XMLName: xml.Name{Local: "list"},
			Attrs:   []xml.Attr{{Name: xml.Name{Local: "name"}, Value: list.Name}},
			Inner:   items.Bytes(),
		}),
	}
}

// nodeBytes serializes nodes into raw inner XML for a parent node.
func nodeBytes(nodes ...stanza.Node) []byte {
	var buf bytes.Buffer
	for _, n := range nodes {
		b, err := xml.Marshal(n)
		if err != nil {
			continue
		}
		buf.Write(b)
	}
	return buf.Bytes()
}

// findList locates the named list element under a privacy query node.
func findList(q *stanza.Node, name string) *stanza.Node {
	for _, n := range q.Children() {
		if n.XMLName.Local == "list" && n.Attr("name") == name {
			list := n
			return &list
		}
	}
	return nil
}

// decodeList parses a list element, preserving item order verbatim.
func decodeList(n *stanza.Node) (List, error) {
	if n == nil {
		return List{}, fmt.Errorf("response carries no list element")
	}

	list := List{Name: n.Attr("name")}
	for _, item := range n.Children() {
		if item.XMLName.Local != "item" {
			continue
		}
		userID, _, err := stanza.Sender(item.Attr("value"))
		if err != nil {
			return List{}, fmt.Errorf("malformed list item: %w", err)
		}
		list.Items = append(list.Items, Item{
			UserID: userID,
			Action: Action(item.Attr("action")),
		})
	}
	return list, nil
}

func respError(resp *stanza.Stanza) error {
	if n := resp.Child("error"); n != nil {
		if children := n.Children(); len(children) > 0 {
			return fmt.Errorf("server rejected request: %s", children[0].XMLName.Local)
		}
	}
	return fmt.Errorf("server rejected request")
}
