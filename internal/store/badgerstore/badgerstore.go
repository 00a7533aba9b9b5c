// Package badgerstore stores messages in an embedded BadgerDB instance.
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/store"
)

// BadgerStore implements store.Store on top of BadgerDB.
//
// Keys are "msg/<len>:<roomKey>/" followed by the big-endian creation time
// in unix nanoseconds and the 16 raw ULID bytes, so keys of one room sort by
// (timestamp, id).
type BadgerStore struct {
	db *badger.DB
}

type record struct {
	ID          string       `json:"id"`
	RoomKey     string       `json:"room_key"`
	Sender      store.Sender `json:"sender"`
	Text        string       `json:"text"`
	CreatedAt   int64        `json:"created_at"`
	NextNodeKey *string      `json:"next_node_key,omitempty"`
}

// New opens a Badger database in dir. An empty dir keeps everything in memory.
func New(dir string, logger *zerolog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	if logger != nil {
		opts = opts.WithLogger(zerologAdapter{log: logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// AppendMessage persists a message to storage.
func (s *BadgerStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	if err := ctx.Err(); err != nil {
		return store.Wrap("append", err)
	}
	if err := store.Stamp(msg); err != nil {
		return store.Wrap("append", fmt.Errorf("generate id: %w", err))
	}

	key, err := messageKey(msg)
	if err != nil {
		return store.Wrap("append", err)
	}
	value, err := json.Marshal(record{
		ID:          msg.ID,
		RoomKey:     msg.RoomKey,
		Sender:      msg.Sender,
		Text:        msg.Text,
		CreatedAt:   msg.CreatedAt.UnixNano(),
		NextNodeKey: msg.NextNodeKey,
	})
	if err != nil {
		return store.Wrap("append", fmt.Errorf("encode message: %w", err))
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return store.Wrap("append", fmt.Errorf("set message: %w", err))
	}
	return nil
}

// ListRecentMessages scans the room prefix backwards and returns the newest
// messages in chronological order.
func (s *BadgerStore) ListRecentMessages(ctx context.Context, roomKey string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		return []*store.Message{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, store.Wrap("query recent", err)
	}

	prefix := roomPrefix(roomKey)
	messages := make([]*store.Message, 0, limit)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		opts.PrefetchSize = limit
		it := txn.NewIterator(opts)
		defer it.Close()

		// 0xFF sorts after every timestamp byte sequence of this room.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			messages = append(messages, rec.toMessage())
		}
		return nil
	})
	if err != nil {
		return nil, store.Wrap("query recent", err)
	}

	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}
	return messages, nil
}

func (r record) toMessage() *store.Message {
	return &store.Message{
		ID:          r.ID,
		RoomKey:     r.RoomKey,
		Sender:      r.Sender,
		Text:        r.Text,
		CreatedAt:   time.Unix(0, r.CreatedAt).UTC(),
		NextNodeKey: r.NextNodeKey,
	}
}

func roomPrefix(roomKey string) []byte {
	// The length prefix keeps "a/b" and "a" from sharing a key range.
	return []byte("msg/" + strconv.Itoa(len(roomKey)) + ":" + roomKey + "/")
}

func messageKey(msg *store.Message) ([]byte, error) {
	id, err := ulid.ParseStrict(msg.ID)
	if err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}

	prefix := roomPrefix(msg.RoomKey)
	key := make([]byte, 0, len(prefix)+8+len(id))
	key = append(key, prefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(msg.CreatedAt.UnixNano()))
	key = append(key, id[:]...)
	return key, nil
}

type zerologAdapter struct {
	log *zerolog.Logger
}

func (a zerologAdapter) Errorf(format string, args ...interface{}) {
	a.log.Error().Str("component", "badger").Msgf(format, args...)
}

func (a zerologAdapter) Warningf(format string, args ...interface{}) {
	a.log.Warn().Str("component", "badger").Msgf(format, args...)
}

func (a zerologAdapter) Infof(format string, args ...interface{}) {
	a.log.Debug().Str("component", "badger").Msgf(format, args...)
}

func (a zerologAdapter) Debugf(format string, args ...interface{}) {
	a.log.Trace().Str("component", "badger").Msgf(format, args...)
}
