package memstore

import (
	"sort"
	"sync"
)

// MemoryIndex is the mutable, in-memory half of the reference substrate:
// word -> path -> Posting. Flushed term entries move into immutable
// on-disk segments (see the segment subpackage); MemoryIndex itself never
// touches disk.
type MemoryIndex struct {
	mu    sync.RWMutex
	words map[string]map[string]Posting
	size  int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		words: make(map[string]map[string]Posting),
	}
}

// Upsert adds or overwrites the posting for (word, path).
func (m *MemoryIndex) Upsert(word, path string, meta map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths, ok := m.words[word]
	if !ok {
		paths = make(map[string]Posting)
		m.words[word] = paths
	}
	if _, existed := paths[path]; !existed {
		m.size += int64(len(word) + len(path) + 32)
	}
	paths[path] = Posting{Path: path, Metadata: meta}
}

// Remove deletes the posting for (word, path), if present.
func (m *MemoryIndex) Remove(word, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths, ok := m.words[word]
	if !ok {
		return
	}
	if _, existed := paths[path]; existed {
		delete(paths, path)
		m.size -= int64(len(word) + len(path) + 32)
	}
	if len(paths) == 0 {
		delete(m.words, word)
	}
}

// Search returns the posting list for word, sorted by path for
// deterministic ordering.
func (m *MemoryIndex) Search(word string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths, ok := m.words[word]
	if !ok {
		return nil
	}
	out := make(PostingList, 0, len(paths))
	for _, p := range paths {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Count reports the cardinality of word's posting list.
func (m *MemoryIndex) Count(word string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.words[word])
}

// SearchLike returns the union of postings for every word matching
// pattern (a substrate-side predicate over word, not a regex here — the
// caller supplies the match function so memstore stays pattern-agnostic).
func (m *MemoryIndex) SearchLike(match func(word string) bool) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]Posting)
	for word, paths := range m.words {
		if !match(word) {
			continue
		}
		for path, p := range paths {
			seen[path] = p
		}
	}
	out := make(PostingList, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// CountLike counts the union cardinality of every word matching pattern.
func (m *MemoryIndex) CountLike(match func(word string) bool) int {
	return len(m.SearchLike(match))
}

// Scan invokes fn once per distinct word with its current posting list,
// for use by the blacklisting scan operator. Iteration order is
// unspecified.
func (m *MemoryIndex) Scan(fn func(word string, postings PostingList)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for word, paths := range m.words {
		list := make(PostingList, 0, len(paths))
		for _, p := range paths {
			list = append(list, p)
		}
		fn(word, list)
	}
}

// Snapshot returns every term entry, sorted by word, for a segment flush.
func (m *MemoryIndex) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.words))
	for word, paths := range m.words {
		list := make(PostingList, 0, len(paths))
		for _, p := range paths {
			list = append(list, p)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Path < list[j].Path })
		entries = append(entries, TermEntry{Word: word, Postings: list})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Word < entries[j].Word })
	return entries
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) WordCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.words)
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words = make(map[string]map[string]Posting)
	m.size = 0
}
