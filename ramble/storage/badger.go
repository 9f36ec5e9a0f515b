package storage

import (
	"bytes"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists facts in a badger database, one key per tuple. Keys
// are <relation> 0x00 <field> (0x01 <field>)*, values empty: membership is
// the key's existence and row order is the key order.
type BadgerStore struct {
	db *badger.DB
}

const (
	keySep   = 0x00
	fieldSep = 0x01
)

// OpenBadger opens (or creates) a badger-backed fact store at path.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: opening badger at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func relationPrefix(relation string) []byte {
	return append([]byte(relation), keySep)
}

func rowKey(relation string, row []string) []byte {
	key := relationPrefix(relation)
	for i, field := range row {
		if i > 0 {
			key = append(key, fieldSep)
		}
		key = append(key, field...)
	}
	return key
}

func decodeRow(key, prefix []byte) []string {
	rest := key[len(prefix):]
	if len(rest) == 0 {
		return []string{}
	}
	parts := bytes.Split(rest, []byte{fieldSep})
	row := make([]string, len(parts))
	for i, p := range parts {
		row[i] = string(p)
	}
	return row
}

func (s *BadgerStore) Load(relation string, params map[string]string) ([][]string, error) {
	prefix := relationPrefix(relation)
	var rows [][]string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			rows = append(rows, decodeRow(it.Item().Key(), prefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: loading %s: %w", relation, err)
	}
	return rows, nil
}

func (s *BadgerStore) Store(relation string, params map[string]string, rows [][]string) error {
	batch := s.db.NewWriteBatch()
	defer batch.Cancel()
	for _, row := range rows {
		if err := batch.Set(rowKey(relation, row), nil); err != nil {
			return fmt.Errorf("storage: storing %s: %w", relation, err)
		}
	}
	if err := batch.Flush(); err != nil {
		return fmt.Errorf("storage: storing %s: %w", relation, err)
	}
	return nil
}

func (s *BadgerStore) Size(relation string) (int, error) {
	prefix := relationPrefix(relation)
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("storage: sizing %s: %w", relation, err)
	}
	return count, nil
}
