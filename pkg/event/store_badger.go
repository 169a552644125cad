package event

import (
	"bytes"
	"context"
	"fmt"

	"github.com/agubarev/handbook/pkg/fault"
	"github.com/dgraph-io/badger"
	jsoniter "github.com/json-iterator/go"
	"github.com/oklog/ulid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// key prefixes
var (
	prefixEvent    = []byte("event:")
	prefixBusiness = "business:%d:"
	prefixUser     = "user:%d:"
)

// badgerStore keeps events in an embedded key-value database, the
// primary record is stored under its id and indexed by its owners
type badgerStore struct {
	db *badger.DB
}

// NewBadgerStore returns an event store backed by badger
func NewBadgerStore(db *badger.DB) (Store, error) {
	if db == nil {
		return nil, ErrNilDB
	}

	return &badgerStore{db: db}, nil
}

// OpenBadger opens a badger database in a given directory, its
// internal logging goes through zap
func OpenBadger(dir string, logger *zap.Logger) (*badger.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(badgerLogger{logger.Named("[badger]").Sugar()}))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open badger database at %s", dir)
	}

	return db, nil
}

type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

func eventKey(id ulid.ULID) []byte {
	return append(append([]byte{}, prefixEvent...), id[:]...)
}

func indexPrefix(businessID, userID uint32) []byte {
	if businessID != 0 {
		return []byte(fmt.Sprintf(prefixBusiness, businessID))
	}

	return []byte(fmt.Sprintf(prefixUser, userID))
}

func (s *badgerStore) CreateEvent(ctx context.Context, e Event) error {
	data, err := jsoniter.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "failed to encode event")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := eventKey(e.ID)

		if _, err := txn.Get(key); err == nil {
			return fault.Invariant("Event", "Insert", "record already exists")
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		if e.BusinessID != nil && *e.BusinessID != 0 {
			if err := txn.Set(append(indexPrefix(*e.BusinessID, 0), e.ID[:]...), nil); err != nil {
				return err
			}
		}

		if e.UserID != nil && *e.UserID != 0 {
			if err := txn.Set(append(indexPrefix(0, *e.UserID), e.ID[:]...), nil); err != nil {
				return err
			}
		}

		return nil
	})

	if _, ok := fault.As(err); ok || err == nil {
		return err
	}

	return fault.Storage(err, "Event Insert failed")
}

func (s *badgerStore) get(txn *badger.Txn, id ulid.ULID) (e Event, err error) {
	item, err := txn.Get(eventKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return e, fault.NotFound("Event")
		}

		return e, fault.Storage(err, "Event Select failed")
	}

	err = item.Value(func(val []byte) error {
		return jsoniter.Unmarshal(val, &e)
	})

	if err != nil {
		return e, fault.Storage(err, "failed to decode event")
	}

	return e, nil
}

func (s *badgerStore) FetchEventByID(ctx context.Context, id ulid.ULID) (e Event, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		e, err = s.get(txn, id)
		return err
	})

	return e, err
}

func (s *badgerStore) FetchEvents(ctx context.Context, businessID, userID uint32, limit int) ([]Event, error) {
	es := make([]Event, 0)
	prefix := indexPrefix(businessID, userID)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// reverse iteration starts past the last key of the prefix
		last := append(append([]byte{}, prefix...), bytes.Repeat([]byte{0xFF}, len(ulid.ULID{})+1)...)

		for it.Seek(last); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(es) >= limit {
				break
			}

			var id ulid.ULID
			copy(id[:], it.Item().Key()[len(prefix):])

			e, err := s.get(txn, id)
			if err != nil {
				return err
			}

			es = append(es, e)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return es, nil
}
