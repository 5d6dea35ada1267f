package entity

import "testing"

func TestMakeEntityID_Deterministic(t *testing.T) {
	a := MakeEntityID("repo-1", "src/lib.rs", "crate::caller")
	b := MakeEntityID("repo-1", "src/lib.rs", "crate::caller")
	if a != b {
		t.Fatalf("expected identical ids for identical inputs, got %q and %q", a, b)
	}
}

func TestMakeEntityID_DistinctInputsDiverge(t *testing.T) {
	base := MakeEntityID("repo-1", "src/lib.rs", "crate::caller")
	cases := []string{
		MakeEntityID("repo-2", "src/lib.rs", "crate::caller"),
		MakeEntityID("repo-1", "src/other.rs", "crate::caller"),
		MakeEntityID("repo-1", "src/lib.rs", "crate::other"),
	}
	for _, c := range cases {
		if c == base {
			t.Fatalf("expected distinct id, collided with base %q", base)
		}
	}
}

func TestMakeEntityID_SeparatorPreventsConcatenationCollision(t *testing.T) {
	a := MakeEntityID("repo", "ab", "c")
	b := MakeEntityID("repo", "a", "bc")
	if a == b {
		t.Fatalf("expected separator to disambiguate field boundaries, got equal ids %q", a)
	}
}

func TestNewCodeEntity_IDMatchesMakeEntityID(t *testing.T) {
	e := NewCodeEntity("repo-1", "src/lib.rs", "crate::caller", "caller", EntityTypeFunction, LanguageRust)
	want := MakeEntityID("repo-1", "src/lib.rs", "crate::caller")
	if e.EntityID != want {
		t.Fatalf("entity id %q does not match MakeEntityID %q", e.EntityID, want)
	}
}

func TestCodeEntity_CallAliases(t *testing.T) {
	e := NewCodeEntity("repo-1", "src/lib.rs", "crate::<crate::H as crate::Handler>::handle", "handle", EntityTypeMethod, LanguageRust)
	e.Metadata.Attributes = map[string]string{
		"call_alias_0": "H::handle",
		"call_alias_1": "<H as Handler>::handle",
	}
	aliases := e.CallAliases()
	if len(aliases) != 2 || aliases[0] != "H::handle" || aliases[1] != "<H as Handler>::handle" {
		t.Fatalf("unexpected call aliases: %v", aliases)
	}
}
