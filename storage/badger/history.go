package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/storage"
)

// HistoryRepository implements storage.HistoryRepository for BadgerDB.
type HistoryRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(backend *Backend) (*HistoryRepository, error) {
	idSeq, err := backend.GetSequence(historyIDSeq)
	if err != nil {
		return nil, err
	}

	return &HistoryRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *HistoryRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *HistoryRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AppendEntries appends conversation turns to their sessions.
func (r *HistoryRepository) AppendEntries(ctx context.Context, entries ...*core.HistoryEntry) ([]*core.HistoryEntry, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, entry := range entries {
			if err := entry.Validate(); err != nil {
				return err
			}

			// Always generate new ID from sequence
			nextID, err := r.idSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				nextID, err = r.idSeq.Next()
				if err != nil {
					return err
				}
			}
			entry.Id = core.ID(nextID)

			entry.InsertedAt = time.Now().UTC()
			if entry.Timestamp.IsZero() {
				entry.Timestamp = entry.InsertedAt
			}

			// Store primary record
			key := makeHistoryKey(entry.Id)
			value := storage.MarshalHistoryEntry(entry)
			if err := tx.Set(key, value); err != nil {
				return err
			}

			// Update session index
			sessKey := makeHistorySessionKey(entry.SessionId, entry.Timestamp, entry.Id)
			if err := tx.Set(sessKey, storage.MarshalID(entry.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return entries, err
}

// GetRecentEntries retrieves the N most recent turns of a session,
// in chronological order (oldest first).
func (r *HistoryRepository) GetRecentEntries(ctx context.Context, sessionId string, limit int) ([]*core.HistoryEntry, error) {
	if sessionId == "" {
		return nil, core.ErrEmptySessionId
	}

	var results []*core.HistoryEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Walk the session index newest-first, then reverse
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true

		iter := tx.NewIterator(opts)
		defer iter.Close()

		startKey := makePartialHistorySessionKey(sessionId,
			time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC))
		prefix := makeHistorySessionPrefix(sessionId)

		count := 0
		for iter.Seek(startKey); iter.Valid() && count < limit; iter.Next() {
			key := iter.Item().Key()

			if len(key) < len(prefix) || slices.Compare(key[:len(prefix)], prefix) != 0 {
				break
			}

			var entryID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				entryID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			entry, err := r.readHistoryEntry(tx, makeHistoryKey(entryID))
			if err != nil {
				return err
			}
			if entry != nil {
				results = append(results, entry)
				count++
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.Reverse(results)
	return results, nil
}

// GetEntriesByDateRange retrieves turns of a session within a time range.
func (r *HistoryRepository) GetEntriesByDateRange(ctx context.Context, sessionId string, start, end time.Time) ([]*core.HistoryEntry, error) {
	if sessionId == "" {
		return nil, core.ErrEmptySessionId
	}
	if start.Equal(end) {
		end = start.Add(1 * time.Microsecond)
	}

	var results []*core.HistoryEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		startKey := makePartialHistorySessionKey(sessionId, start)
		endKey := makePartialHistorySessionKey(sessionId, end)
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if slices.Compare(key, endKey) > 0 {
				break
			}

			var entryID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				entryID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			entry, err := r.readHistoryEntry(tx, makeHistoryKey(entryID))
			if err != nil {
				return err
			}
			if entry != nil {
				results = append(results, entry)
			}
		}
		return nil
	}, false)

	return results, err
}

// DeleteSession removes all turns of a session.
func (r *HistoryRepository) DeleteSession(ctx context.Context, sessionId string) error {
	if sessionId == "" {
		return core.ErrEmptySessionId
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeHistorySessionPrefix(sessionId)
		iter := tx.NewIterator(opts)

		// Collect keys first, badger forbids writes during iteration
		var sessKeys [][]byte
		var entryIDs []core.ID
		for iter.Rewind(); iter.Valid(); iter.Next() {
			sessKeys = append(sessKeys, iter.Item().KeyCopy(nil))

			var entryID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				entryID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				iter.Close()
				return err
			}
			entryIDs = append(entryIDs, entryID)
		}
		iter.Close()

		for _, key := range sessKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		for _, id := range entryIDs {
			if err := tx.Delete(makeHistoryKey(id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// readHistoryEntry reads a history entry from the transaction.
func (r *HistoryRepository) readHistoryEntry(tx *badger.Txn, key []byte) (*core.HistoryEntry, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entry *core.HistoryEntry
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entry, unmarshalErr = storage.UnmarshalHistoryEntry(val)
		return unmarshalErr
	})
	return entry, err
}
