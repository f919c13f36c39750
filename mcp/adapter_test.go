package mcp

import "testing"

func TestNameAdapterRoundTrip(t *testing.T) {
	adapter := NewNameAdapter()

	safe := adapter.GetSafeName("cdli.artifacts.search")
	if safe != "cdli_artifacts_search" {
		t.Errorf("Expected cdli_artifacts_search, got %s", safe)
	}

	original, ok := adapter.ToOriginalName(safe)
	if !ok {
		t.Fatal("Expected mapping to exist")
	}
	if original != "cdli.artifacts.search" {
		t.Errorf("Expected original name back, got %s", original)
	}

	// Names without dots pass through unchanged
	if got := adapter.GetSafeName("plain_name"); got != "plain_name" {
		t.Errorf("Expected plain_name unchanged, got %s", got)
	}
}

func TestToOriginalNameUnknown(t *testing.T) {
	adapter := NewNameAdapter()
	if _, ok := adapter.ToOriginalName("never_registered"); ok {
		t.Error("Expected no mapping for unregistered name")
	}
}
