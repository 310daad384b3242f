package catalog

import "testing"

func TestSplitVariations(t *testing.T) {
	got := SplitVariations(" Asunción , ,asuncion,  ")
	if len(got) != 2 || got[0] != "Asunción" || got[1] != "asuncion" {
		t.Fatalf("unexpected variations: %#v", got)
	}
	if SplitVariations("   ") != nil {
		t.Fatalf("expected nil for blank input")
	}
}
