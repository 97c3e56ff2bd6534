package storage

import (
	"context"
	"strings"
)

// Index is the file-name-based partition existence index: the set of raw
// mirror file names already present under the raw data prefix. It is a
// cheap pre-filter used to skip redundant fetches.
//
// The index only sees keys whose raw-mirror write previously ran to
// completion. It cannot detect a key whose canonical-dataset write failed
// after the mirror succeeded, or vice versa; catalog-truth reconciliation
// exists to close that gap.
type Index struct {
	names map[string]struct{}
}

// LoadIndex lists every object under prefix and builds the membership
// set of file names (with the prefix stripped).
func LoadIndex(ctx context.Context, store ObjectStore, prefix string) (*Index, error) {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	names := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, prefix)
		if name == "" {
			// Folder placeholder object some stores return for the prefix itself.
			continue
		}
		names[name] = struct{}{}
	}
	return &Index{names: names}, nil
}

// Contains reports whether a raw file with this name already exists.
func (ix *Index) Contains(name string) bool {
	_, ok := ix.names[name]
	return ok
}

// Len returns the number of indexed files.
func (ix *Index) Len() int {
	return len(ix.names)
}
