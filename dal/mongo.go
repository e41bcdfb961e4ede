package dal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"casetrack-backend/models"
	"casetrack-backend/utils/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoIndexes mirrors the DynamoDB secondary indexes
var mongoIndexes = map[models.EntityType][]string{
	models.EntityDTR:       {"caseId", "serialNumber", "status"},
	models.EntityRMA:       {"rmaNumber"},
	models.EntityProjector: {"serialNumber"},
	models.EntitySite:      {"siteCode"},
}

type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger logger.Logger
}

// NewMongoStore connects, pings and ensures indexes
func NewMongoStore(cfg *models.Config, log logger.Logger) (*MongoStore, error) {
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("mongo connection URI is empty")
	}

	clientOptions := options.Client().ApplyURI(cfg.MongoURI).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(10 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &MongoStore{
		client: client,
		db:     client.Database(cfg.MongoDatabase),
		logger: log,
	}
	if err := store.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	log.Info("✅ MongoDB store initialized successfully")
	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	for _, entity := range models.AllEntities {
		indexModels := []mongo.IndexModel{{
			Keys:    bson.D{{Key: primaryKey, Value: 1}},
			Options: options.Index().SetUnique(true).SetName("id_unique"),
		}}
		for _, field := range mongoIndexes[entity] {
			indexModels = append(indexModels, mongo.IndexModel{
				Keys:    bson.D{{Key: field, Value: 1}},
				Options: options.Index().SetName(field + "_idx"),
			})
		}
		if _, err := s.db.Collection(string(entity)).Indexes().CreateMany(ctx, indexModels); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", entity, err)
		}
	}
	return nil
}

func (s *MongoStore) collection(entity models.EntityType) *mongo.Collection {
	return s.db.Collection(string(entity))
}

func (s *MongoStore) FindOne(ctx context.Context, entity models.EntityType, filter models.Filter, result interface{}) (bool, error) {
	nf, err := normalizeFilter(filter)
	if err != nil {
		return false, err
	}

	var doc bson.M
	err = s.collection(entity).FindOne(ctx, bson.M(nf), options.FindOne().SetProjection(bson.M{"_id": 0})).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		s.logger.Errorf("Failed to find %s: %v", entity, err)
		return false, err
	}
	return true, decodeBSON(doc, result)
}

func (s *MongoStore) Find(ctx context.Context, entity models.EntityType, filter models.Filter, opts models.FindOptions, results interface{}) error {
	nf, err := normalizeFilter(filter)
	if err != nil {
		return err
	}

	findOptions := options.Find().SetProjection(bson.M{"_id": 0})
	if opts.SortBy != "" {
		direction := 1
		if opts.SortDesc {
			direction = -1
		}
		findOptions.SetSort(bson.D{{Key: opts.SortBy, Value: direction}})
	}
	if opts.Skip > 0 {
		findOptions.SetSkip(int64(opts.Skip))
	}
	if opts.Limit > 0 {
		findOptions.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.collection(entity).Find(ctx, bson.M(nf), findOptions)
	if err != nil {
		s.logger.Errorf("Failed to find %s: %v", entity, err)
		return err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return err
	}
	if docs == nil {
		docs = []bson.M{}
	}
	return decodeBSON(docs, results)
}

func (s *MongoStore) Count(ctx context.Context, entity models.EntityType, filter models.Filter) (int64, error) {
	nf, err := normalizeFilter(filter)
	if err != nil {
		return 0, err
	}
	return s.collection(entity).CountDocuments(ctx, bson.M(nf))
}

func (s *MongoStore) Insert(ctx context.Context, entity models.EntityType, record interface{}) error {
	doc, err := toDocument(record)
	if err != nil {
		return err
	}
	_, err = s.collection(entity).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		s.logger.Errorf("Failed to insert into %s: %v", entity, err)
	}
	return err
}

func (s *MongoStore) UpdateByID(ctx context.Context, entity models.EntityType, id string, patch map[string]interface{}, cond *models.Condition) (bool, error) {
	set := bson.M{}
	unset := bson.M{}
	for field, value := range patch {
		if value == nil {
			unset[field] = ""
			continue
		}
		nv, err := normalizeValue(value)
		if err != nil {
			return false, err
		}
		set[field] = nv
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	filter := bson.M{primaryKey: id}
	var guards bson.A
	for _, clause := range cond.Clauses() {
		if clause.IsEmpty {
			guards = append(guards, bson.M{"$or": bson.A{
				bson.M{clause.Field: bson.M{"$exists": false}},
				bson.M{clause.Field: nil},
				bson.M{clause.Field: ""},
			}})
			continue
		}
		nv, err := normalizeValue(clause.Equals)
		if err != nil {
			return false, err
		}
		guards = append(guards, bson.M{clause.Field: nv})
	}
	if len(guards) > 0 {
		filter["$and"] = guards
	}

	result, err := s.collection(entity).UpdateOne(ctx, filter, update)
	if err != nil {
		s.logger.Errorf("Failed to update %s/%s: %v", entity, id, err)
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (s *MongoStore) DeleteMany(ctx context.Context, entity models.EntityType, ids []string) (int64, error) {
	result, err := s.collection(entity).DeleteMany(ctx, bson.M{primaryKey: bson.M{"$in": ids}})
	if err != nil {
		s.logger.Errorf("Failed to delete from %s: %v", entity, err)
		return 0, err
	}
	return result.DeletedCount, nil
}

func (s *MongoStore) Increment(ctx context.Context, entity models.EntityType, id string) (int64, error) {
	var counter models.Counter
	err := s.collection(entity).FindOneAndUpdate(ctx,
		bson.M{primaryKey: id},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		s.logger.Errorf("Failed to increment counter %s: %v", id, err)
		return 0, err
	}
	return counter.Value, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		s.logger.Errorf("Failed to disconnect MongoDB client: %v", err)
		return err
	}
	s.logger.Info("Successfully disconnected from MongoDB")
	return nil
}

// decodeBSON routes documents through relaxed extended JSON so the record
// types only need their json tags.
func decodeBSON(v interface{}, out interface{}) error {
	var data []byte
	switch doc := v.(type) {
	case bson.M:
		raw, err := bson.MarshalExtJSON(doc, false, false)
		if err != nil {
			return err
		}
		data = raw
	case []bson.M:
		parts := make([]json.RawMessage, 0, len(doc))
		for _, d := range doc {
			raw, err := bson.MarshalExtJSON(d, false, false)
			if err != nil {
				return err
			}
			parts = append(parts, raw)
		}
		raw, err := json.Marshal(parts)
		if err != nil {
			return err
		}
		data = raw
	default:
		return fmt.Errorf("unsupported document type %T", v)
	}
	return json.Unmarshal(data, out)
}
