package normalize

import "github.com/zeebo/xxh3"

// dedupSet suppresses repeated lines within a single entity's normalization
// pass. It stores xxh3 hashes of the normalized line content (after the tag
// prepend, before the terminating newline) rather than the lines themselves,
// keeping memory proportional to the distinct-line count. The set lives for
// exactly one pass and is discarded with it; there is no cross-entity or
// cross-run state.
type dedupSet struct {
	seen map[uint64]struct{}
}

func newDedupSet() *dedupSet {
	return &dedupSet{seen: make(map[uint64]struct{}, 1024)}
}

// observe reports whether line was already emitted in this pass, recording it
// otherwise. The first occurrence always wins.
func (d *dedupSet) observe(line string) bool {
	h := xxh3.HashString(line)
	if _, ok := d.seen[h]; ok {
		return true
	}
	d.seen[h] = struct{}{}
	return false
}
