/*
Package catalog owns the static shape of the dependency graph.

A Catalog accepts batches of node definitions, rejects structural defects
(unknown dependencies, cycles, malformed definitions) at registration time
and publishes an immutable Graph snapshot holding the reverse-adjacency
index and one global topological order.

# Ordering

The topological order is computed with Kahn's algorithm. Among nodes that
are ready at the same time, the node registered first comes first, so the
order is reproducible across runs for identical registrations.

# Concurrency

Register is serialized internally. Graph snapshots are never mutated after
publication and may be shared freely between goroutines; a pass that
started on one snapshot keeps using it even if a later batch is registered.
*/
package catalog
