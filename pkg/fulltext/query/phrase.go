package query

// Matches reports whether the ordered per-word position lists positions
// (one []int per word of the phrase, in original word order) contain a
// contiguous run: a position p such that positions[i] contains p+i for
// every i. It is a thin wrapper over MatchesWithOffsets using the
// sequential offsets 0,1,2,... every word of an un-collapsed phrase
// holds.
func Matches(positions [][]int) bool {
	offsets := make([]int, len(positions))
	for i := range offsets {
		offsets[i] = i
	}
	return MatchesWithOffsets(positions, offsets)
}

// MatchesWithOffsets reports whether positions (one []int per surviving
// word of a phrase, in phrase order) contains a run anchored at some base
// slot b such that positions[i] holds b+offsets[i] for every i. offsets
// need not be sequential: a word dropped by the stoplist still reserves
// its slot in the phrase template, so the words around it carry the
// offset they would have held had it stayed, rather than being densely
// renumbered. b itself must be non-negative, so slots a leading dropped
// word vacated still fall on positions in the candidate record; slots
// after the last surviving word are not checked. It is checked iteratively over
// an explicit cursor rather than via recursion, since stack depth would
// otherwise grow with phrase length.
func MatchesWithOffsets(positions [][]int, offsets []int) bool {
	if len(positions) == 0 {
		return false
	}
	if len(positions) == 1 {
		for _, p := range positions[0] {
			if p-offsets[0] >= 0 {
				return true
			}
		}
		return false
	}
	sets := make([]map[int]struct{}, len(positions))
	for i, list := range positions {
		set := make(map[int]struct{}, len(list))
		for _, p := range list {
			set[p] = struct{}{}
		}
		sets[i] = set
	}
	for _, p0 := range positions[0] {
		base := p0 - offsets[0]
		if base >= 0 && matchesFrom(base, sets, offsets) {
			return true
		}
	}
	return false
}

func matchesFrom(base int, sets []map[int]struct{}, offsets []int) bool {
	for i := 1; i < len(sets); i++ {
		if _, ok := sets[i][base+offsets[i]]; !ok {
			return false
		}
	}
	return true
}
