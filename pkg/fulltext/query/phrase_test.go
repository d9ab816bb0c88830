package query

import "testing"

func TestMatchesContiguousRun(t *testing.T) {
	// "brown" at positions {1,5}, "fox" at positions {2,9}: contiguous at 1,2.
	positions := [][]int{{1, 5}, {2, 9}}
	if !Matches(positions) {
		t.Fatal("expected a contiguous run at position 1")
	}
}

func TestMatchesNoRun(t *testing.T) {
	positions := [][]int{{1, 5}, {9}}
	if Matches(positions) {
		t.Fatal("expected no contiguous run")
	}
}

func TestMatchesSingleWord(t *testing.T) {
	if !Matches([][]int{{0, 3}}) {
		t.Fatal("a single word with any occurrence should match")
	}
	if Matches([][]int{{}}) {
		t.Fatal("a single word with zero occurrences should not match")
	}
}

func TestMatchesThreeWordPhrase(t *testing.T) {
	// "the" at 0, "quick" at 1, "fox" at 2 and 7.
	positions := [][]int{{0}, {1}, {2, 7}}
	if !Matches(positions) {
		t.Fatal("expected the quick fox to match at position 0")
	}
}
