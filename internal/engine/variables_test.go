package engine

import (
	"reflect"
	"testing"
)

func TestVarStoreLookupPrecedence(t *testing.T) {
	v := NewVarStore()
	v.SetGlobal("draft", "global value")
	v.SetLocal("draft", "local value")

	got, ok := v.Lookup("draft")
	if !ok || got != "local value" {
		t.Errorf("Lookup(draft) = %q, %v; want local value", got, ok)
	}

	v.EndPhase()
	got, ok = v.Lookup("draft")
	if !ok || got != "global value" {
		t.Errorf("Lookup(draft) after EndPhase = %q, %v; want global value", got, ok)
	}
}

func TestVarStoreNotSetSentinel(t *testing.T) {
	v := NewVarStore()

	// "not set" is distinguishable from "set to empty string".
	if _, ok := v.Local("missing"); ok {
		t.Error("Local(missing) ok = true, want false")
	}
	v.SetLocal("empty", "")
	if got, ok := v.Local("empty"); !ok || got != "" {
		t.Errorf("Local(empty) = %q, %v; want empty string with ok=true", got, ok)
	}

	// Declared globals hold no value until written.
	if _, ok := v.Global("instructions"); ok {
		t.Error("Global(instructions) ok = true before any write, want false")
	}
}

func TestVarStorePromote(t *testing.T) {
	v := NewVarStore()
	v.SetLocal("outline", "phase output")
	v.Promote("outline")

	if _, ok := v.Local("outline"); ok {
		t.Error("promoted variable still present in local scope")
	}
	if got, ok := v.Global("outline"); !ok || got != "phase output" {
		t.Errorf("Global(outline) = %q, %v; want phase output", got, ok)
	}

	// Promoting a missing local name is a no-op.
	v.Promote("nosuch")
	if _, ok := v.Global("nosuch"); ok {
		t.Error("Promote of missing name created a global")
	}
}

func TestVarStoreLastWriteWins(t *testing.T) {
	v := NewVarStore()
	v.SetLocal("draft", "first")
	v.SetLocal("draft", "second")

	if got, _ := v.Local("draft"); got != "second" {
		t.Errorf("Local(draft) = %q, want second", got)
	}
}

func TestVarStoreDelete(t *testing.T) {
	v := NewVarStore()
	v.SetLocal("x", "a")
	v.SetGlobal("x", "b")
	v.Delete("x")

	if _, ok := v.Lookup("x"); ok {
		t.Error("Lookup(x) ok = true after Delete")
	}
}

func TestVarStoreEndPhaseClearsLocalsOnly(t *testing.T) {
	v := NewVarStore()
	v.SetLocal("a", "1")
	v.SetGlobal("b", "2")
	v.EndPhase()

	if _, ok := v.Local("a"); ok {
		t.Error("local survived EndPhase")
	}
	if got, ok := v.Global("b"); !ok || got != "2" {
		t.Errorf("Global(b) = %q, %v; want 2", got, ok)
	}
}

func TestSubstitute(t *testing.T) {
	v := NewVarStore()
	v.SetGlobal("instructions", "write a story")
	v.SetLocal("draft", "once upon a time")

	tests := []struct {
		name           string
		text           string
		want           string
		wantUnresolved []string
	}{
		{
			name: "resolved tokens",
			text: "Task: {{instructions}}\nDraft: {{draft}}",
			want: "Task: write a story\nDraft: once upon a time",
		},
		{
			name:           "unresolved passes through verbatim",
			text:           "Use {{finalDraft}} here",
			want:           "Use {{finalDraft}} here",
			wantUnresolved: []string{"finalDraft"},
		},
		{
			name: "no tokens",
			text: "plain text",
			want: "plain text",
		},
		{
			name: "malformed braces untouched",
			text: "{{not a token}} and {single}",
			want: "{{not a token}} and {single}",
		},
		{
			name:           "mixed",
			text:           "{{draft}} then {{missing}}",
			want:           "once upon a time then {{missing}}",
			wantUnresolved: []string{"missing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unresolved := v.Substitute(tt.text)
			if got != tt.want {
				t.Errorf("Substitute(%q) = %q, want %q", tt.text, got, tt.want)
			}
			if !reflect.DeepEqual(unresolved, tt.wantUnresolved) {
				t.Errorf("unresolved = %v, want %v", unresolved, tt.wantUnresolved)
			}
		})
	}
}

func TestDeclaredIncludesDefaultsAndLocals(t *testing.T) {
	v := NewVarStore("extra")
	v.SetLocal("scratch", "x")

	declared := v.Declared()
	for _, name := range append([]string{"extra", "scratch"}, DefaultGlobals...) {
		if !declared[name] {
			t.Errorf("Declared() missing %q", name)
		}
	}
}
