package protocol

// Group is one node of the database group tree.
type Group struct {
	Name     string  `json:"name"`
	UUID     string  `json:"uuid"`
	Children []Group `json:"children"`
}

// GroupTree is the "groups" object of a get-database-groups reply. The first
// element of Groups is the database root.
type GroupTree struct {
	Groups []Group `json:"groups"`
}

// Flatten maps every group name below the root to its uuid, depth first.
// The root group itself is not included. Later duplicates of a name
// overwrite earlier ones.
func (t GroupTree) Flatten() map[string]string {
	out := make(map[string]string)
	if len(t.Groups) == 0 {
		return out
	}
	flattenInto(t.Groups[0].Children, out)
	return out
}

func flattenInto(children []Group, out map[string]string) {
	for _, g := range children {
		out[g.Name] = g.UUID
		flattenInto(g.Children, out)
	}
}

// Find returns the group at a slash separated path below the root.
func (t GroupTree) Find(path []string) (Group, bool) {
	if len(t.Groups) == 0 {
		return Group{}, false
	}
	cur := t.Groups[0]
	for _, name := range path {
		found := false
		for _, c := range cur.Children {
			if c.Name == name {
				cur, found = c, true
				break
			}
		}
		if !found {
			return Group{}, false
		}
	}
	return cur, true
}
