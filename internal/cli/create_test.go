package cli

import "testing"

func TestValidateName(t *testing.T) {
	valid := []string{"a", "review-pack", "pack2", "0leading"}
	for _, name := range valid {
		if err := validateName(name); err != nil {
			t.Errorf("validateName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "-lead", "UPPER", "has space", "dot.name", "@scoped/x"}
	for _, name := range invalid {
		if err := validateName(name); err == nil {
			t.Errorf("validateName(%q) should fail", name)
		}
	}
}

func TestParseToolsList(t *testing.T) {
	got, err := parseToolsList("claude, codex,claude-code")
	if err != nil {
		t.Fatalf("parseToolsList: %v", err)
	}
	// claude and claude-code are the same tool.
	if len(got) != 2 || got[0] != "claude-code" || got[1] != "codex" {
		t.Errorf("parseToolsList = %v, want [claude-code codex]", got)
	}

	if _, err := parseToolsList("notepad"); err == nil {
		t.Error("unsupported tool should fail")
	}
	if _, err := parseToolsList(" , "); err == nil {
		t.Error("empty list should fail")
	}
}
