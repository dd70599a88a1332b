// Package storage persists collections, buckets, and vectors to a local
// filesystem, rooted at <data_root>/storage/<collection_name>/ (spec.md
// §4.5):
//
//	storage/<collection>/<hash>.bin        collection header
//	storage/<collection>/<bucket_id>/0.bin bucket header
//	storage/<collection>/<bucket_id>/vectors/<vector_id>.bin
//
// Every file is an independently-decodable, length-prefixed record (see
// format.go); there is no journal or incremental log. Dump rewrites a whole
// collection; Load reconstructs the in-memory registry from what Dump wrote.
//
// Tests exercise this package against afero.NewMemMapFs() so persistence
// logic is verified without touching a real disk; production nodes open it
// against afero.NewOsFs(), the same swap-the-backend shape torua's own
// storage.Store gave its MemoryStore.
package storage
