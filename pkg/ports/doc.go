/*
Package ports defines the driven ports (interfaces) of the taxgraph engine.

These interfaces decouple the session layer and transports from concrete
storage and coordination backends.

# Key Interfaces

  - StateStore: persists sessions (params, state and revision) by key.
  - DistributedLocker: serializes access to a session across replicas.
  - Engine: the compute surface transports and the session manager drive.
*/
package ports
