package redis

import (
	"encoding/json"
	"strconv"
	"time"

	"auction-marketplace/internal/domain"
)

type indexEntry struct {
	key   string
	score float64
}

func docKey(collection, id string) string {
	return "doc:" + collection + ":" + id
}

func indexKey(collection, field string) string {
	return "idx:" + collection + ":" + field
}

func groupIndexKey(collection, field, group, value string) string {
	return indexKey(collection, field) + ":" + group + "=" + value
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// scoreOf turns an order field into an index score. Strings must be RFC3339 timestamps.
func scoreOf(raw json.RawMessage) (float64, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, false
		}
		return domain.TimeScore(t), true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	return 0, false
}

// entriesFor lists every index position a document occupies. A nil document occupies none.
func (s *DocumentStore) entriesFor(collection string, data []byte) ([]indexEntry, error) {
	if data == nil {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	var entries []indexEntry
	for _, spec := range s.indexes {
		if !spec.Covers(collection) {
			continue
		}
		raw, ok := fields[spec.OrderField]
		if !ok {
			continue
		}
		score, ok := scoreOf(raw)
		if !ok {
			continue
		}
		entries = append(entries, indexEntry{key: indexKey(collection, spec.OrderField), score: score})

		if spec.GroupField == "" {
			continue
		}
		var group string
		if err := json.Unmarshal(fields[spec.GroupField], &group); err != nil || group == "" {
			continue
		}
		entries = append(entries, indexEntry{
			key:   groupIndexKey(collection, spec.OrderField, spec.GroupField, group),
			score: score,
		})
	}
	return entries, nil
}

// indexFor picks the sorted set that answers q, or returns ErrInvalidQuery.
func (s *DocumentStore) indexFor(q domain.Query) (string, error) {
	for _, spec := range s.indexes {
		if !spec.Covers(q.Collection) || spec.OrderField != q.OrderBy {
			continue
		}
		switch {
		case len(q.Where) == 0:
			return indexKey(q.Collection, spec.OrderField), nil
		case len(q.Where) == 1 && spec.GroupField != "" &&
			q.Where[0].Op == domain.OpEqual && q.Where[0].Field == spec.GroupField:
			value, ok := q.Where[0].Value.(string)
			if !ok {
				return "", domain.ErrInvalidQuery
			}
			return groupIndexKey(q.Collection, spec.OrderField, spec.GroupField, value), nil
		}
	}
	return "", domain.ErrInvalidQuery
}
