/*
Package domain contains the core domain models of the taxgraph engine.

It defines the static shape of the dependency graph (node definitions,
value constraints, materialization scopes), the per-session runtime values
(snapshots and the immutable State), the events that drive recomputation and
the audit records produced by every compute pass. This package is kept pure
and free of external dependencies like I/O or persistence.

# Key Entities

  - NodeDefinition: a named quantity, either an Input or a Computed node.
  - SessionParams: the fixed context of a session (tax year, filing status...).
  - State: the immutable mapping from materialized node ID to NodeSnapshot.
  - InputEvent: a single change request targeting one node instance.
  - TraceFrame: the audit record of one compute pass.
*/
package domain
