package domain

import "context"

// Store is a storage backend implementing every repository contract.
type Store interface {
	UserRepository
	SuggestionStore
	VoteLedger
	Ping(ctx context.Context) error
	Close() error
}
