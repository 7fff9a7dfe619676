// Package signature computes content-addressed identities for pipeline
// modules, connections and sub-pipelines.
//
// Three layers are memoised by [Cache]:
//
//   - Module signature: a hash of the module's own content (name, package,
//     version, parameter values). Never its id.
//   - Sub-pipeline signature: the module signature combined with one branch
//     hash per incoming connection, where each branch hashes the upstream
//     sub-pipeline together with the connection's content. Branches are sorted
//     before combining, so the order connections were added does not matter.
//   - Connection signature: the connection's content combined with the
//     sub-pipeline signatures of both endpoints.
//
// Two pipelines that differ only in their ids therefore produce identical
// signatures, which is what lets an executor reuse a result computed by an
// equivalent sub-pipeline elsewhere.
//
// # Invalidation
//
// Each layer keeps an inverse map from signature to id for O(1) reverse
// lookups. Deleting or changing a module or connection purges its entries
// from both directions immediately, together with every signature derived
// from it downstream. Purged values are recomputed lazily on the next query.
//
// # Hashing
//
// [Hash] is SHA-256 over a domain prefix and the JSON encoding of the parts,
// hex encoded. Content values must therefore be JSON-encodable.
package signature
