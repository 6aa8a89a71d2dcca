// Package memory contains concrete MemoryStore implementations. The store
// interface and SearchResult type reside in the core package; depend on
// core.MemoryStore in your code and select an implementation at wiring time.
//
// Available backends:
//   - InMemoryStore: process-local substring search, suited for tests
//   - chromem: embedded vector search with per-user collections
//   - qdrant: remote vector database over its REST API
//
// The vector backends rely on the embedding subpackage to turn text into
// vectors before storage and recall.
package memory
