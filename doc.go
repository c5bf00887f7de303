// Package tapreturnless extracts the Returnless REST API as a stream of
// Singer messages.
//
// # Architecture
//
// The tap is organized in layers:
//
//  1. pkg/clients: the HTTP client with bearer auth, rate limiting, a
//     circuit breaker and bounded retries.
//  2. pkg/connector/rest: a declarative REST stream engine. Streams are
//     described by StreamDefinition values and synced depth-first by an
//     Orchestrator that follows links.next pagination.
//  3. pkg/connector/sources/returnless: the twenty Returnless streams and
//     the source that writes SCHEMA, RECORD and STATE messages.
//  4. pkg/protocol: the Singer message writer, catalog and bookmarks.
//
// # Quick Start
//
//	cfg, err := config.LoadTapConfig("config.yaml")
//	if err != nil {
//		return err
//	}
//	source := returnless.NewReturnlessSource()
//	if err := source.Initialize(ctx, cfg); err != nil {
//		return err
//	}
//	defer source.Close(ctx)
//	return source.Sync(ctx, os.Stdout)
//
// The tap-returnless command wraps the same flow with flags for output,
// stream selection, metrics and tracing.
package tapreturnless
