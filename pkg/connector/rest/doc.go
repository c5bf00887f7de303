// Package rest implements a generic extraction engine for paginated REST
// APIs that link to their next page (HATEOAS).
//
// A Catalog holds immutable StreamDefinitions. The Orchestrator syncs every
// parentless stream in catalog order; each Stream pages through its
// endpoint, filters records through a PostProcessor, hands retained records
// to a Sink and, depth-first, syncs its child streams with a Context
// projected from the parent record.
//
// Execution is single-threaded with one request in flight. Page N and all
// of its descendant child syncs finish before page N+1 is requested.
package rest
