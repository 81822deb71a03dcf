// Package acl defines the per-store access control list entities.
package acl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Perms is a set of access rights encoded as a bit flag. The wire form
// is the NEWT-style short list ["r", "w", "x"].
type Perms uint8

// Individual access rights.
const (
	PermRead Perms = 1 << iota
	PermWrite
	PermExec
)

// None is the empty permission set. An identity whose effective set is
// None is indistinguishable from one with no ACL entry at all.
const None Perms = 0

var flagNames = []struct {
	flag Perms
	name string
}{
	{PermRead, "r"},
	{PermWrite, "w"},
	{PermExec, "x"},
}

// ParsePerm converts a single short permission name ("r", "w" or "x")
// into its flag.
func ParsePerm(s string) (Perms, error) {
	for _, fn := range flagNames {
		if fn.name == s {
			return fn.flag, nil
		}
	}

	return None, fmt.Errorf("acl: unknown permission %q", s)
}

// ParsePerms converts a list of short permission names into a set.
// Duplicates are collapsed; an empty list yields None.
func ParsePerms(names []string) (Perms, error) {
	var p Perms
	for _, n := range names {
		flag, err := ParsePerm(n)
		if err != nil {
			return None, err
		}
		p |= flag
	}

	return p, nil
}

// ParseCompact converts the compact form produced by String (e.g. "rwx",
// "r") back into a set. The empty string yields None.
func ParseCompact(s string) (Perms, error) {
	var p Perms
	for _, r := range s {
		flag, err := ParsePerm(string(r))
		if err != nil {
			return None, err
		}
		p |= flag
	}

	return p, nil
}

// Has reports whether every right in want is present in p.
func (p Perms) Has(want Perms) bool {
	return p&want == want
}

// IsEmpty reports whether p grants nothing.
func (p Perms) IsEmpty() bool {
	return p == None
}

// List returns the short names of the rights in p, in canonical r, w, x
// order. Returns an empty (non-nil) slice for None.
func (p Perms) List() []string {
	out := make([]string, 0, len(flagNames))
	for _, fn := range flagNames {
		if p&fn.flag != 0 {
			out = append(out, fn.name)
		}
	}

	return out
}

// String returns the canonical compact form, e.g. "rwx" or "r".
func (p Perms) String() string {
	return strings.Join(p.List(), "")
}

// MarshalJSON encodes the set as a JSON array of short names.
func (p Perms) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.List())
}

// UnmarshalJSON decodes a JSON array of short names.
func (p *Perms) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("acl: unmarshal perms: %w", err)
	}

	parsed, err := ParsePerms(names)
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}

// Entry grants a permission set to one identity on one store.
type Entry struct {
	StoreID   string    `json:"store_id" db:"store_id"`
	Identity  string    `json:"identity" db:"identity"`
	Perms     Perms     `json:"perms" db:"perms"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Grant pairs an identity with a permission set. Replacement input is an
// ordered sequence of grants; when the same identity appears more than
// once, the later grant wins.
type Grant struct {
	Identity string `json:"name"`
	Perms    Perms  `json:"perms"`
}

// Fold collapses an ordered grant sequence into a map, later entries
// overriding earlier ones for the same identity. Empty grants are
// dropped so they never persist as ghost entries.
func Fold(grants []Grant) map[string]Perms {
	out := make(map[string]Perms, len(grants))
	for _, g := range grants {
		if g.Perms.IsEmpty() {
			delete(out, g.Identity)
			continue
		}
		out[g.Identity] = g.Perms
	}

	return out
}

// ACL is a point-in-time snapshot of one store's access control list.
type ACL struct {
	StoreID string           `json:"store_id"`
	Grants  map[string]Perms `json:"grants"`
}

// Identities returns the identities holding a non-empty grant, sorted.
func (a *ACL) Identities() []string {
	out := make([]string, 0, len(a.Grants))
	for identity, perms := range a.Grants {
		if !perms.IsEmpty() {
			out = append(out, identity)
		}
	}
	sort.Strings(out)

	return out
}

// Effective returns the permission set held by identity, or None.
func (a *ACL) Effective(identity string) Perms {
	if a == nil {
		return None
	}

	return a.Grants[identity]
}
