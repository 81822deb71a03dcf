package acl_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/cofferhq/coffer/acl"
)

func TestParsePerms(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    acl.Perms
		wantErr bool
	}{
		{"empty", nil, acl.None, false},
		{"read only", []string{"r"}, acl.PermRead, false},
		{"write only", []string{"w"}, acl.PermWrite, false},
		{"exec only", []string{"x"}, acl.PermExec, false},
		{"all", []string{"r", "w", "x"}, acl.PermRead | acl.PermWrite | acl.PermExec, false},
		{"duplicates collapse", []string{"r", "r", "w"}, acl.PermRead | acl.PermWrite, false},
		{"order irrelevant", []string{"x", "r"}, acl.PermRead | acl.PermExec, false},
		{"unknown name", []string{"read"}, acl.None, true},
		{"unknown flag", []string{"z"}, acl.None, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := acl.ParsePerms(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %v, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePerms(%v) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParsePerms(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseCompactRoundTrip(t *testing.T) {
	for _, s := range []string{"", "r", "w", "x", "rw", "rx", "wx", "rwx"} {
		p, err := acl.ParseCompact(s)
		if err != nil {
			t.Fatalf("ParseCompact(%q) failed: %v", s, err)
		}
		if p.String() != s {
			t.Errorf("round-trip mismatch: %q != %q", p.String(), s)
		}
	}

	if _, err := acl.ParseCompact("rz"); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestPermsHas(t *testing.T) {
	p := acl.PermRead | acl.PermWrite

	if !p.Has(acl.PermRead) {
		t.Error("expected read to be granted")
	}
	if !p.Has(acl.PermRead | acl.PermWrite) {
		t.Error("expected read+write to be granted")
	}
	if p.Has(acl.PermExec) {
		t.Error("expected exec to be denied")
	}
	if p.Has(acl.PermRead | acl.PermExec) {
		t.Error("expected read+exec to be denied when exec is missing")
	}
}

func TestNoneGrantsNothing(t *testing.T) {
	if !acl.None.IsEmpty() {
		t.Error("None should be empty")
	}
	if acl.None.Has(acl.PermRead) {
		t.Error("None should not grant read")
	}
	// Has with an empty want is vacuously true for any set.
	if !acl.None.Has(acl.None) {
		t.Error("empty requirement should always pass")
	}
}

func TestPermsList(t *testing.T) {
	tests := []struct {
		name string
		p    acl.Perms
		want []string
	}{
		{"none", acl.None, []string{}},
		{"rwx canonical order", acl.PermExec | acl.PermRead | acl.PermWrite, []string{"r", "w", "x"}},
		{"rx", acl.PermRead | acl.PermExec, []string{"r", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.List(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("List() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPermsString(t *testing.T) {
	p := acl.PermRead | acl.PermWrite | acl.PermExec
	if p.String() != "rwx" {
		t.Errorf("expected \"rwx\", got %q", p.String())
	}
	if acl.None.String() != "" {
		t.Errorf("expected empty string for None, got %q", acl.None.String())
	}
}

func TestPermsJSONRoundTrip(t *testing.T) {
	original := acl.PermRead | acl.PermExec

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `["r","x"]` {
		t.Errorf("unexpected encoding: %s", data)
	}

	var restored acl.Perms
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if restored != original {
		t.Errorf("round-trip mismatch: %v != %v", restored, original)
	}
}

func TestPermsJSONRejectsUnknown(t *testing.T) {
	var p acl.Perms
	if err := json.Unmarshal([]byte(`["r","bogus"]`), &p); err == nil {
		t.Error("expected error for unknown permission name")
	}
}

func TestACLEffective(t *testing.T) {
	a := &acl.ACL{
		StoreID: "notes",
		Grants: map[string]acl.Perms{
			"alice": acl.PermRead | acl.PermWrite,
			"bob":   acl.PermRead,
		},
	}

	if got := a.Effective("alice"); got != acl.PermRead|acl.PermWrite {
		t.Errorf("alice: got %v", got)
	}
	if got := a.Effective("mallory"); got != acl.None {
		t.Errorf("unknown identity should resolve to None, got %v", got)
	}

	var nilACL *acl.ACL
	if got := nilACL.Effective("alice"); got != acl.None {
		t.Errorf("nil ACL should resolve to None, got %v", got)
	}
}

func TestACLIdentities(t *testing.T) {
	a := &acl.ACL{
		StoreID: "notes",
		Grants: map[string]acl.Perms{
			"carol": acl.PermExec,
			"alice": acl.PermRead,
			"ghost": acl.None,
		},
	}

	want := []string{"alice", "carol"}
	if got := a.Identities(); !reflect.DeepEqual(got, want) {
		t.Errorf("Identities() = %v, want %v", got, want)
	}
}

func TestFoldLastGrantWins(t *testing.T) {
	grants := []acl.Grant{
		{Identity: "alice", Perms: acl.PermRead | acl.PermWrite | acl.PermExec},
		{Identity: "bob", Perms: acl.PermRead},
		{Identity: "bob", Perms: acl.PermWrite},
		{Identity: "carol", Perms: acl.PermExec},
		{Identity: "carol", Perms: acl.None},
	}

	got := acl.Fold(grants)
	if got["bob"] != acl.PermWrite {
		t.Errorf("bob: later grant should win, got %v", got["bob"])
	}
	if _, ok := got["carol"]; ok {
		t.Error("carol: trailing empty grant should remove the entry")
	}
	if len(got) != 2 {
		t.Errorf("expected 2 surviving grants, got %d", len(got))
	}
}
