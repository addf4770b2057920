// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - DocumentStore: durable document persistence (WAL + page files)
//   - PathIndex: path-keyed primary index for exact and prefix lookup
//   - TextIndex: trigram full-text index for fuzzy, ranked search
//
// Every port has a file-backed adapter under internal/adapters/driven and
// a decorator stack under internal/wrappers that implements the same
// interface while adding one cross-cutting concern per layer.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter or wrapper package
package driven
