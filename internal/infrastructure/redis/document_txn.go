package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"auction-marketplace/internal/domain"

	"github.com/go-redis/redis/v8"
)

type pendingWrite func(ctx context.Context, pipe redis.Pipeliner)

// txn buffers writes until commit. Every document it reads is watched first, and a local
// view of written documents makes later reads in the same transaction see them.
type txn struct {
	store   *DocumentStore
	rtx     *redis.Tx
	view    map[string][]byte
	watched map[string]bool
	writes  []pendingWrite
}

func newTxn(store *DocumentStore, rtx *redis.Tx) *txn {
	return &txn{
		store:   store,
		rtx:     rtx,
		view:    make(map[string][]byte),
		watched: make(map[string]bool),
	}
}

func (t *txn) watch(ctx context.Context, keys ...string) error {
	var fresh []string
	for _, k := range keys {
		if !t.watched[k] {
			fresh = append(fresh, k)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := t.rtx.Watch(ctx, fresh...).Err(); err != nil {
		return err
	}
	for _, k := range fresh {
		t.watched[k] = true
	}
	return nil
}

// load returns the current bytes of a document, nil when absent.
func (t *txn) load(ctx context.Context, collection, id string) ([]byte, error) {
	key := docKey(collection, id)
	if data, ok := t.view[key]; ok {
		return data, nil
	}
	if err := t.watch(ctx, key); err != nil {
		return nil, err
	}
	data, err := t.rtx.Get(ctx, key).Bytes()
	if err == redis.Nil {
		data = nil
	} else if err != nil {
		return nil, err
	}
	t.view[key] = data
	return data, nil
}

func (t *txn) Get(ctx context.Context, collection, id string, dst interface{}) error {
	data, err := t.load(ctx, collection, id)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collection, id)
	}
	return json.Unmarshal(data, dst)
}

// Query reads committed state; writes buffered in this transaction are not reflected.
func (t *txn) Query(ctx context.Context, q domain.Query) ([]domain.DocumentSnapshot, error) {
	return t.store.query(ctx, t.rtx, t.watch, q)
}

func (t *txn) Set(ctx context.Context, collection, id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode %s/%s: %v", domain.ErrValidation, collection, id, err)
	}
	return t.put(ctx, collection, id, data)
}

func (t *txn) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	current, err := t.load(ctx, collection, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collection, id)
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(current, &merged); err != nil {
		return err
	}
	for name, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("%w: encode field %s: %v", domain.ErrValidation, name, err)
		}
		merged[name] = raw
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return t.put(ctx, collection, id, data)
}

func (t *txn) Delete(ctx context.Context, collection, id string) error {
	current, err := t.load(ctx, collection, id)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}
	return t.replace(collection, id, current, nil)
}

func (t *txn) put(ctx context.Context, collection, id string, data []byte) error {
	current, err := t.load(ctx, collection, id)
	if err != nil {
		return err
	}
	return t.replace(collection, id, current, data)
}

// replace queues the document write together with the index moves it implies.
func (t *txn) replace(collection, id string, old, next []byte) error {
	oldEntries, err := t.store.entriesFor(collection, old)
	if err != nil {
		return err
	}
	newEntries, err := t.store.entriesFor(collection, next)
	if err != nil {
		return err
	}

	key := docKey(collection, id)
	t.view[key] = next
	t.writes = append(t.writes, func(ctx context.Context, pipe redis.Pipeliner) {
		for _, e := range oldEntries {
			pipe.ZRem(ctx, e.key, id)
		}
		if next == nil {
			pipe.Del(ctx, key)
			return
		}
		pipe.Set(ctx, key, next, 0)
		for _, e := range newEntries {
			pipe.ZAdd(ctx, e.key, &redis.Z{Score: e.score, Member: id})
		}
	})
	return nil
}

func (t *txn) commit(ctx context.Context) error {
	if len(t.writes) == 0 {
		return nil
	}
	_, err := t.rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, w := range t.writes {
			w(ctx, pipe)
		}
		return nil
	})
	return err
}
