package dal

import (
	"context"
	"sort"
	"sync"

	"casetrack-backend/models"
	"casetrack-backend/utils/logger"
)

// MemoryStore keeps every collection in process. It backs local runs
// (store_backend=memory) and the service tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[models.EntityType][]map[string]interface{}
	logger      logger.Logger
}

func NewMemoryStore(log logger.Logger) *MemoryStore {
	return &MemoryStore{
		collections: make(map[models.EntityType][]map[string]interface{}),
		logger:      log,
	}
}

func (s *MemoryStore) FindOne(ctx context.Context, entity models.EntityType, filter models.Filter, result interface{}) (bool, error) {
	nf, err := normalizeFilter(filter)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.collections[entity] {
		if matchesFilter(doc, nf) {
			return true, fromDocument(doc, result)
		}
	}
	return false, nil
}

func (s *MemoryStore) Find(ctx context.Context, entity models.EntityType, filter models.Filter, opts models.FindOptions, results interface{}) error {
	nf, err := normalizeFilter(filter)
	if err != nil {
		return err
	}

	s.mu.RLock()
	matched := make([]map[string]interface{}, 0)
	for _, doc := range s.collections[entity] {
		if matchesFilter(doc, nf) {
			matched = append(matched, doc)
		}
	}
	s.mu.RUnlock()

	if opts.SortBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			c := compareValues(matched[i][opts.SortBy], matched[j][opts.SortBy])
			if opts.SortDesc {
				return c > 0
			}
			return c < 0
		})
	}
	return fromDocument(pageItems(matched, opts.Skip, opts.Limit), results)
}

func (s *MemoryStore) Count(ctx context.Context, entity models.EntityType, filter models.Filter) (int64, error) {
	nf, err := normalizeFilter(filter)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, doc := range s.collections[entity] {
		if matchesFilter(doc, nf) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Insert(ctx context.Context, entity models.EntityType, record interface{}) error {
	doc, err := toDocument(record)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, _ := doc[primaryKey].(string); id != "" {
		for _, existing := range s.collections[entity] {
			if existing[primaryKey] == id {
				return ErrDuplicateKey
			}
		}
	}
	s.collections[entity] = append(s.collections[entity], doc)
	return nil
}

func (s *MemoryStore) UpdateByID(ctx context.Context, entity models.EntityType, id string, patch map[string]interface{}, cond *models.Condition) (bool, error) {
	normalized := make(map[string]interface{}, len(patch))
	for field, value := range patch {
		nv, err := normalizeValue(value)
		if err != nil {
			return false, err
		}
		normalized[field] = nv
	}
	clauses := cond.Clauses()
	wants := make([]interface{}, len(clauses))
	for i, clause := range clauses {
		if clause.IsEmpty {
			continue
		}
		nv, err := normalizeValue(clause.Equals)
		if err != nil {
			return false, err
		}
		wants[i] = nv
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collections[entity]
	for i, doc := range docs {
		if doc[primaryKey] != id {
			continue
		}
		for i, clause := range clauses {
			current := doc[clause.Field]
			if clause.IsEmpty && !isEmptyValue(current) {
				return false, nil
			}
			if !clause.IsEmpty && compareValues(current, wants[i]) != 0 {
				return false, nil
			}
		}

		updated := make(map[string]interface{}, len(doc)+len(normalized))
		for k, v := range doc {
			updated[k] = v
		}
		for field, value := range normalized {
			if value == nil {
				delete(updated, field)
				continue
			}
			updated[field] = value
		}
		docs[i] = updated
		return true, nil
	}
	return false, nil
}

func (s *MemoryStore) DeleteMany(ctx context.Context, entity models.EntityType, ids []string) (int64, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.collections[entity][:0]
	var deleted int64
	for _, doc := range s.collections[entity] {
		id, _ := doc[primaryKey].(string)
		if _, ok := wanted[id]; ok {
			deleted++
			continue
		}
		kept = append(kept, doc)
	}
	s.collections[entity] = kept
	return deleted, nil
}

func (s *MemoryStore) Increment(ctx context.Context, entity models.EntityType, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.collections[entity] {
		if doc[primaryKey] == id {
			value, _ := doc["value"].(float64)
			value++
			doc["value"] = value
			return int64(value), nil
		}
	}
	s.collections[entity] = append(s.collections[entity], map[string]interface{}{
		primaryKey: id,
		"value":    float64(1),
	})
	return 1, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	s.logger.Info("Memory store closed")
	return nil
}
