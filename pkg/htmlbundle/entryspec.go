package htmlbundle

import (
	"sort"
)

// EntryItem is one raw build input: a source path with an optional explicit
// output key.
type EntryItem struct {
	// Key is the explicit destination for keyed inputs, empty otherwise.
	Key string
	// Path is the input file path.
	Path string
}

// EntrySpec is the raw entry specification handed to a build: a single path,
// a list of paths, or a path-keyed mapping, normalized to an ordered list.
type EntrySpec []EntryItem

// Entry builds the spec for a single input path.
func Entry(path string) EntrySpec {
	return EntrySpec{{Path: path}}
}

// Entries builds the spec for a list of input paths.
func Entries(paths ...string) EntrySpec {
	spec := make(EntrySpec, 0, len(paths))
	for _, p := range paths {
		spec = append(spec, EntryItem{Path: p})
	}
	return spec
}

// KeyedEntries builds the spec for a destination-keyed mapping. Keys are
// sorted so the spec is deterministic regardless of map iteration order.
func KeyedEntries(entries map[string]string) EntrySpec {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	spec := make(EntrySpec, 0, len(entries))
	for _, k := range keys {
		spec = append(spec, EntryItem{Key: k, Path: entries[k]})
	}
	return spec
}
