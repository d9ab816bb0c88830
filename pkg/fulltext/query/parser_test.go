package query

import "testing"

func TestParseSingleWord(t *testing.T) {
	tree := Parse("brown")
	if len(tree.Branches) != 1 {
		t.Fatalf("expected 1 branch, got %d", len(tree.Branches))
	}
	if tree.Branches[0].Residual != "brown" {
		t.Fatalf("unexpected residual: %q", tree.Branches[0].Residual)
	}
}

func TestParseOR(t *testing.T) {
	tree := Parse("quick OR turtles")
	if len(tree.Branches) != 2 {
		t.Fatalf("expected 2 branches, got %d", len(tree.Branches))
	}
	if tree.Branches[0].Residual != "quick" || tree.Branches[1].Residual != "turtles" {
		t.Fatalf("unexpected branches: %+v", tree.Branches)
	}
}

func TestParsePhrase(t *testing.T) {
	tree := Parse(`"brown fox"`)
	if len(tree.Branches) != 1 {
		t.Fatalf("expected 1 branch, got %d", len(tree.Branches))
	}
	b := tree.Branches[0]
	if len(b.Phrases) != 1 || b.Phrases[0] != "brown fox" {
		t.Fatalf("unexpected phrases: %+v", b.Phrases)
	}
	if b.Residual != "" {
		t.Fatalf("expected empty residual, got %q", b.Residual)
	}
}

func TestParsePhraseWithResidual(t *testing.T) {
	tree := Parse(`"brown fox" jumps`)
	b := tree.Branches[0]
	if len(b.Phrases) != 1 || b.Phrases[0] != "brown fox" {
		t.Fatalf("unexpected phrases: %+v", b.Phrases)
	}
	if b.Residual != "jumps" {
		t.Fatalf("unexpected residual: %q", b.Residual)
	}
}

func TestParseWildcardWords(t *testing.T) {
	tree := Parse("br* f?x")
	if tree.Branches[0].Residual != "br* f?x" {
		t.Fatalf("unexpected residual: %q", tree.Branches[0].Residual)
	}
}
