// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (suggestion.go, vote.go, user.go, event.go, ...) hold
// entities and the consumer-side contracts implemented by adapters. No
// implementation code lives here, which keeps the import graph acyclic.
package domain
