package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const singleWriteAttempts = 3

// reader is the read surface shared by *redis.Client and *redis.Tx.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	ZCount(ctx context.Context, key, min, max string) *redis.IntCmd
	ZRangeByScoreWithScores(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.ZSliceCmd
	ZRevRangeByScoreWithScores(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.ZSliceCmd
}

// DocumentStore keeps JSON documents under doc:{collection}:{id} and one sorted set per
// declared index. Transactions use WATCH and MULTI/EXEC.
type DocumentStore struct {
	client  *redis.Client
	indexes []domain.IndexSpec
	log     logger.Logger
}

func NewDocumentStore(client *redis.Client, indexes []domain.IndexSpec, log logger.Logger) *DocumentStore {
	return &DocumentStore{
		client:  client,
		indexes: indexes,
		log:     log,
	}
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string, dst interface{}) error {
	data, err := s.client.Get(ctx, docKey(collection, id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collection, id)
		}
		return s.classify(err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return s.classify(err)
	}
	return nil
}

func (s *DocumentStore) Set(ctx context.Context, collection, id string, doc interface{}) error {
	return s.writeOne(ctx, func(ctx context.Context, tx domain.Txn) error {
		return tx.Set(ctx, collection, id, doc)
	})
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	return s.writeOne(ctx, func(ctx context.Context, tx domain.Txn) error {
		return tx.Update(ctx, collection, id, fields)
	})
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	return s.writeOne(ctx, func(ctx context.Context, tx domain.Txn) error {
		return tx.Delete(ctx, collection, id)
	})
}

func (s *DocumentStore) Query(ctx context.Context, q domain.Query) ([]domain.DocumentSnapshot, error) {
	docs, err := s.query(ctx, s.client, noWatch, q)
	return docs, s.classify(err)
}

func (s *DocumentStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Txn) error) error {
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		t := newTxn(s, rtx)
		if err := fn(ctx, t); err != nil {
			return err
		}
		return t.commit(ctx)
	})
	return s.classify(err)
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *DocumentStore) Close() error {
	return s.client.Close()
}

// writeOne retries a single-document write that lost a race. Multi-document callers use
// RunTransaction directly and decide for themselves.
func (s *DocumentStore) writeOne(ctx context.Context, fn func(ctx context.Context, tx domain.Txn) error) error {
	var err error
	for attempt := 0; attempt < singleWriteAttempts; attempt++ {
		err = s.RunTransaction(ctx, fn)
		if !errors.Is(err, domain.ErrConcurrentModification) {
			return err
		}
	}
	return err
}

// classify maps driver errors onto the domain taxonomy without leaking them.
func (s *DocumentStore) classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%w: transaction aborted by a concurrent write", domain.ErrConcurrentModification)
	case domain.IsClassified(err):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		s.log.Error("Document store failure", "error", err)
		return domain.ErrStoreUnavailable
	}
}

func noWatch(context.Context, ...string) error { return nil }

func (s *DocumentStore) query(ctx context.Context, r reader, watch func(context.Context, ...string) error, q domain.Query) ([]domain.DocumentSnapshot, error) {
	if len(q.Where) == 1 && q.Where[0].Op == domain.OpIn && q.Where[0].Field == domain.FieldID {
		return s.queryIDs(ctx, r, watch, q)
	}

	key, err := s.indexFor(q)
	if err != nil {
		return nil, fmt.Errorf("%w: no index on %s ordered by %q", err, q.Collection, q.OrderBy)
	}
	if err := watch(ctx, key); err != nil {
		return nil, err
	}

	members, err := s.scan(ctx, r, key, q)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []domain.DocumentSnapshot{}, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = docKey(q.Collection, m.Member.(string))
	}
	values, err := r.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	docs := make([]domain.DocumentSnapshot, 0, len(members))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry without a document; skipped until the next write repairs it
			continue
		}
		id := members[i].Member.(string)
		docs = append(docs, domain.DocumentSnapshot{
			ID:     id,
			Data:   json.RawMessage(raw),
			Cursor: domain.Cursor{Score: members[i].Score, ID: id},
		})
	}
	return docs, nil
}

// scan reads index members after q.StartAfter. Members sharing the cursor score are fetched
// in full so the (score, id) comparison can drop the ones already returned.
func (s *DocumentStore) scan(ctx context.Context, r reader, key string, q domain.Query) ([]redis.Z, error) {
	lo, hi := "-inf", "+inf"
	var cursor *domain.Cursor
	if q.StartAfter != nil {
		cursor = q.StartAfter
		if q.Descending {
			hi = formatScore(cursor.Score)
		} else {
			lo = formatScore(cursor.Score)
		}
	}
	if q.EndAt != nil {
		if q.Descending {
			lo = formatScore(*q.EndAt)
		} else {
			hi = formatScore(*q.EndAt)
		}
	}

	opt := &redis.ZRangeBy{Min: lo, Max: hi}
	if q.Limit > 0 {
		opt.Count = int64(q.Limit)
		if cursor != nil {
			ties, err := r.ZCount(ctx, key, formatScore(cursor.Score), formatScore(cursor.Score)).Result()
			if err != nil {
				return nil, err
			}
			opt.Count += ties
		}
	}

	var (
		members []redis.Z
		err     error
	)
	if q.Descending {
		members, err = r.ZRevRangeByScoreWithScores(ctx, key, opt).Result()
	} else {
		members, err = r.ZRangeByScoreWithScores(ctx, key, opt).Result()
	}
	if err != nil {
		return nil, err
	}

	out := members[:0]
	for _, m := range members {
		id := m.Member.(string)
		if cursor != nil && m.Score == cursor.Score {
			if !q.Descending && id <= cursor.ID {
				continue
			}
			if q.Descending && id >= cursor.ID {
				continue
			}
		}
		out = append(out, m)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *DocumentStore) queryIDs(ctx context.Context, r reader, watch func(context.Context, ...string) error, q domain.Query) ([]domain.DocumentSnapshot, error) {
	ids, ok := q.Where[0].Value.([]string)
	if !ok {
		return nil, fmt.Errorf("%w: id filter needs a string list", domain.ErrInvalidQuery)
	}
	if len(ids) > domain.MaxInValues {
		return nil, fmt.Errorf("%w: %d ids exceed the limit of %d", domain.ErrInvalidQuery, len(ids), domain.MaxInValues)
	}
	if len(ids) == 0 {
		return []domain.DocumentSnapshot{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(q.Collection, id)
	}
	if err := watch(ctx, keys...); err != nil {
		return nil, err
	}
	values, err := r.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	docs := make([]domain.DocumentSnapshot, 0, len(ids))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		snap := domain.DocumentSnapshot{ID: ids[i], Data: json.RawMessage(raw), Cursor: domain.Cursor{ID: ids[i]}}
		if q.OrderBy != "" {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(snap.Data, &fields); err == nil {
				snap.Cursor.Score, _ = scoreOf(fields[q.OrderBy])
			}
		}
		docs = append(docs, snap)
	}

	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			a, b := docs[i].Cursor, docs[j].Cursor
			if a.Score == b.Score {
				if q.Descending {
					return a.ID > b.ID
				}
				return a.ID < b.ID
			}
			if q.Descending {
				return a.Score > b.Score
			}
			return a.Score < b.Score
		})
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}
