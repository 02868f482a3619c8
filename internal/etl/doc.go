// Package etl implements the stages of the bank capitalisation pipeline:
// crawl the source page, extract the ranked table, derive currency values,
// load the sinks and run the fixed queries.
//
// The functions here are usable on their own; stages.go wraps them as
// pipeline.Stage implementations that exchange JSON payloads through the
// handoff store.
package etl
