// Package gossip discovers peer nodes for a Store's areas using
// hashicorp/memberlist and keeps a store.Dispatcher's peer tables in
// sync with cluster membership: a node joining or updating its
// metadata is added as a peer on every configured area, a node leaving
// is removed from all of them.
package gossip
