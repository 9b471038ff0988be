package repository

import (
	"github.com/okian/qualtrack/internal/domain/identity"
	"github.com/okian/qualtrack/pkg/logger"
)

// Option applies a configuration option to the TreapBoard.
type Option func(*TreapBoard)

// WithKeyer sets how swimmers are identified on the board.
func WithKeyer(k identity.Keyer) Option {
	return func(b *TreapBoard) {
		if k != nil {
			b.keyer = k
		}
	}
}

// StoreOption applies a configuration option to the SQLiteStore.
type StoreOption func(*SQLiteStore)

// WithStoreLogger sets the store logger.
func WithStoreLogger(l logger.Logger) StoreOption {
	return func(s *SQLiteStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithStoreKeyer sets how swimmers are keyed in stored histories.
func WithStoreKeyer(k identity.Keyer) StoreOption {
	return func(s *SQLiteStore) {
		if k != nil {
			s.keyer = k
		}
	}
}
