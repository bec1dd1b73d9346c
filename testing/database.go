package testing

import (
	"net/url"
	"strings"
	"sync"

	"github.com/opd-ai/kpxc/protocol"
)

// Entry is one credential in the simulated database.
type Entry struct {
	UUID      string
	Name      string
	URL       string
	Login     string
	Password  string
	GroupUUID string
	TOTP      string
}

// Database is the in-memory store behind SimulatedPeer. It is safe for
// concurrent use.
type Database struct {
	mu      sync.Mutex
	hash    string
	entries []Entry
	root    *groupNode
}

type groupNode struct {
	name     string
	uuid     string
	children []*groupNode
}

// NewDatabase creates an empty database with a root group.
func NewDatabase() *Database {
	return &Database{
		hash: protocol.NewHexUUID() + protocol.NewHexUUID(),
		root: &groupNode{name: "Root", uuid: protocol.NewHexUUID()},
	}
}

// Hash returns the database identifier reported to clients.
func (d *Database) Hash() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hash
}

// AddEntry stores a credential in the root group and returns its uuid.
func (d *Database) AddEntry(rawURL, login, password string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := Entry{
		UUID:      protocol.NewHexUUID(),
		Name:      hostOf(rawURL),
		URL:       rawURL,
		Login:     login,
		Password:  password,
		GroupUUID: d.root.uuid,
	}
	d.entries = append(d.entries, e)
	return e.UUID
}

// SetTOTP attaches a fixed TOTP value to an entry.
func (d *Database) SetTOTP(uuid, totp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.entries {
		if d.entries[i].UUID == uuid {
			d.entries[i].TOTP = totp
			return true
		}
	}
	return false
}

// Entries returns a copy of all entries.
func (d *Database) Entries() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Entry(nil), d.entries...)
}

// Entry returns the entry with the given uuid.
func (d *Database) Entry(uuid string) (Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.entries {
		if e.UUID == uuid {
			return e, true
		}
	}
	return Entry{}, false
}

func (d *Database) findLogins(rawURL string) []protocol.LoginEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	host := hostOf(rawURL)
	var out []protocol.LoginEntry
	for _, e := range d.entries {
		if host != "" && hostOf(e.URL) == host {
			out = append(out, protocol.LoginEntry{
				Name:     e.Name,
				Login:    e.Login,
				Password: e.Password,
				UUID:     e.UUID,
				Group:    d.groupName(e.GroupUUID),
				TOTP:     e.TOTP,
			})
		}
	}
	return out
}

// upsert applies a set-login request. It reports false when an update
// names an entry that does not exist.
func (d *Database) upsert(req protocol.SetLoginRequest) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	group := d.root.uuid
	if req.GroupUUID != "" && d.findGroup(d.root, req.GroupUUID) != nil {
		group = req.GroupUUID
	}

	if req.UUID != "" {
		for i := range d.entries {
			if d.entries[i].UUID == req.UUID {
				d.entries[i].Login = req.Login
				d.entries[i].Password = req.Password
				d.entries[i].URL = req.URL
				return true
			}
		}
		return false
	}

	d.entries = append(d.entries, Entry{
		UUID:      protocol.NewHexUUID(),
		Name:      hostOf(req.URL),
		URL:       req.URL,
		Login:     req.Login,
		Password:  req.Password,
		GroupUUID: group,
	})
	return true
}

func (d *Database) remove(uuid string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, e := range d.entries {
		if e.UUID == uuid {
			d.entries = append(d.entries[:i], d.entries[i+1:]...)
			return true
		}
	}
	return false
}

// CreateGroup creates every missing level of a slash separated path and
// returns the last level's name and uuid.
func (d *Database) CreateGroup(path string) (string, string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := d.root
	var created *groupNode
	for _, name := range strings.Split(path, "/") {
		if name == "" {
			continue
		}
		var next *groupNode
		for _, c := range cur.children {
			if c.name == name {
				next = c
				break
			}
		}
		if next == nil {
			next = &groupNode{name: name, uuid: protocol.NewHexUUID()}
			cur.children = append(cur.children, next)
		}
		cur, created = next, next
	}
	if created == nil {
		return "", "", false
	}
	return created.name, created.uuid, true
}

// Groups returns the group tree in wire form.
func (d *Database) Groups() protocol.GroupTree {
	d.mu.Lock()
	defer d.mu.Unlock()
	return protocol.GroupTree{Groups: []protocol.Group{toWire(d.root)}}
}

func toWire(n *groupNode) protocol.Group {
	g := protocol.Group{Name: n.name, UUID: n.uuid, Children: []protocol.Group{}}
	for _, c := range n.children {
		g.Children = append(g.Children, toWire(c))
	}
	return g
}

func (d *Database) findGroup(n *groupNode, uuid string) *groupNode {
	if n.uuid == uuid {
		return n
	}
	for _, c := range n.children {
		if g := d.findGroup(c, uuid); g != nil {
			return g
		}
	}
	return nil
}

func (d *Database) groupName(uuid string) string {
	if g := d.findGroup(d.root, uuid); g != nil {
		return g.name
	}
	return ""
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Hostname()
}
