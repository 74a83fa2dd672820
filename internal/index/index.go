// Package index provides the in-memory key directory: a mapping from key to
// the byte range of its most recent live Set record in the log (spec.md
// §4.3). The engine is single-threaded and non-reentrant (spec.md §5), so
// this is a plain map, not a concurrent one.
package index

// Entry is the byte range of a record within the log.
type Entry struct {
	Offset int64
	Length int64
}

// Index maps live keys to their log location.
type Index struct {
	entries map[string]Entry
}

// New returns an empty index.
func New() *Index {
	return &Index{entries: make(map[string]Entry)}
}

// Put inserts or replaces the entry for key, returning the prior entry if
// one existed.
func (idx *Index) Put(key string, e Entry) (prior Entry, existed bool) {
	prior, existed = idx.entries[key]
	idx.entries[key] = e
	return prior, existed
}

// Delete removes key from the index, returning the prior entry if one
// existed.
func (idx *Index) Delete(key string) (prior Entry, existed bool) {
	prior, existed = idx.entries[key]
	if existed {
		delete(idx.entries, key)
	}
	return prior, existed
}

// Get looks up key, returning its entry if present.
func (idx *Index) Get(key string) (Entry, bool) {
	e, ok := idx.entries[key]
	return e, ok
}

// Len returns the number of live keys.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Range calls fn for every live key and its entry, in unspecified order.
// The compactor uses this to rewrite each live record into the new log.
func (idx *Index) Range(fn func(key string, e Entry)) {
	for k, e := range idx.entries {
		fn(k, e)
	}
}

// Replace swaps the entire entry set, relocating every live key to the
// positions the compactor rewrote it at.
func (idx *Index) Replace(entries map[string]Entry) {
	idx.entries = entries
}
