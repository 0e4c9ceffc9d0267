// Package kv implements the versioned key-value data model that every
// area of the Store replicates via epidemic flooding: the Value type
// and its tagged payload variant, the Arbiter total order used to
// resolve conflicting replicas, the Filter engine used to scope merges,
// dumps and subscriptions to a subset of the keyspace, and the Database
// merge protocol that is the single entry point for admitting both
// locally-originated writes and incoming peer publications.
//
// Everything in this package is pure and non-suspending: Compare,
// Filters.Matches and Database.Merge never block and never touch the
// network. Callers (area.Area, the Request Dispatcher, the Client
// Multi-Dump) own all I/O and concurrency.
package kv
