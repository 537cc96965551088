// Package pinboard provides the state-orchestration layer of a pin sharing
// client: creating image-backed pins, loading a pin together with related
// pins, appending comments to a pin's thread and aggregating a user's
// profile collections.
//
// Every orchestrator talks to two independent collaborators, a ContentStore
// (document store with query and atomic patch) and an AssetGateway (binary
// upload service). Implementations of the store (memory, Postgres, MongoDB,
// SQLite) and of blob storage behind the gateway (memory, filesystem, S3) are
// provided under subpackages.
//
// Ordering
//
// Orchestrator methods block on their remote call and may be invoked from
// several goroutines. Responses can therefore resolve out of dispatch order.
// Each orchestrator records the key (pin id, user id, collection mode) of the
// last dispatched load and discards any response whose key no longer matches,
// so a late response for a previous key never overwrites current state.
package pinboard
