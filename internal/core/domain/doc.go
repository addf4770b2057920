// Package domain defines the core business entities for KotaDB.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types:
//
//   - Document: a persisted record with validated path, title, and content
//   - DocumentBuilder: validate-as-you-go construction of Documents
//   - ValidatedPath, ValidatedDocumentID, ValidatedTitle, ValidatedTag,
//     NonZeroSize, ValidatedTimestamp: construct-or-reject value types
//   - Query: a validated search request
//
// The validated types make invalid states unrepresentable: once a value is
// constructed, downstream code never re-checks it.
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. All other packages depend on
// domain, never the reverse.
//
// # Import Rules
//
//   - Can Import: standard library and github.com/google/uuid only
//   - Cannot Import: any internal/ package, any other external dependency
package domain
