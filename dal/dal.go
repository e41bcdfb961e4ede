package dal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"casetrack-backend/models"
	"casetrack-backend/utils/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

const primaryKey = "id"

// secondaryIndexes maps entity -> attribute -> GSI name. The names must match
// infrastructure/table_schema.json.
var secondaryIndexes = map[models.EntityType]map[string]string{
	models.EntityDTR: {
		"caseId":       "caseId-index",
		"serialNumber": "serialNumber-index",
		"status":       "status-index",
	},
	models.EntityRMA: {
		"rmaNumber": "rmaNumber-index",
	},
	models.EntityProjector: {
		"serialNumber": "serialNumber-index",
	},
	models.EntitySite: {
		"siteCode": "siteCode-index",
	},
}

// dynamoAPI is the subset of the SDK client the store uses
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
}

type DynamoDBClient struct {
	client dynamoAPI
	config *models.Config
	logger logger.Logger
}

// NewDynamoDBClient creates a new DynamoDB client
func NewDynamoDBClient(cfg *models.Config, log logger.Logger) (*DynamoDBClient, error) {
	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Use static credentials if provided
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		awsCfg.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"", // session token
		))
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		// Override endpoint for local DynamoDB
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})

	log.Info("✅ DynamoDB client initialized successfully")
	return newDynamoDBClient(client, cfg, log), nil
}

func newDynamoDBClient(client dynamoAPI, cfg *models.Config, log logger.Logger) *DynamoDBClient {
	return &DynamoDBClient{
		client: client,
		config: cfg,
		logger: log,
	}
}

// TableName returns the physical table of an entity
func (db *DynamoDBClient) TableName(entity models.EntityType) string {
	return db.config.DynamoDBTablePrefix + "_" + string(entity)
}

// FindOne returns the first record matching filter
func (db *DynamoDBClient) FindOne(ctx context.Context, entity models.EntityType, filter models.Filter, result interface{}) (bool, error) {
	if id, ok := onlyPrimaryKey(filter); ok {
		output, err := db.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(db.TableName(entity)),
			Key: map[string]types.AttributeValue{
				primaryKey: &types.AttributeValueMemberS{Value: id},
			},
		})
		if err != nil {
			db.logger.Errorf("Failed to get item from %s: %v", entity, describeAPIError(err))
			return false, err
		}
		if output.Item == nil {
			return false, nil
		}
		return true, attributevalue.UnmarshalMap(output.Item, result)
	}

	items, err := db.collect(ctx, entity, filter, 1)
	if err != nil {
		return false, err
	}
	if len(items) == 0 {
		return false, nil
	}
	return true, attributevalue.UnmarshalMap(items[0], result)
}

// Find returns every record matching filter, sorted and paged in memory
func (db *DynamoDBClient) Find(ctx context.Context, entity models.EntityType, filter models.Filter, opts models.FindOptions, results interface{}) error {
	items, err := db.collect(ctx, entity, filter, 0)
	if err != nil {
		return err
	}

	if opts.SortBy != "" {
		sort.SliceStable(items, func(i, j int) bool {
			c := compareAttributes(items[i][opts.SortBy], items[j][opts.SortBy])
			if opts.SortDesc {
				return c > 0
			}
			return c < 0
		})
	}
	items = pageItems(items, opts.Skip, opts.Limit)

	return attributevalue.UnmarshalListOfMaps(items, results)
}

// Count returns the number of records matching filter
func (db *DynamoDBClient) Count(ctx context.Context, entity models.EntityType, filter models.Filter) (int64, error) {
	var total int64
	err := db.paginate(ctx, entity, filter, true, func(items []map[string]types.AttributeValue, count int32) bool {
		total += int64(count)
		return true
	})
	return total, err
}

// Insert stores a new record, refusing to overwrite an existing id
func (db *DynamoDBClient) Insert(ctx context.Context, entity models.EntityType, record interface{}) error {
	av, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = db.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(db.TableName(entity)),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": primaryKey},
	})
	if isConditionFailed(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		db.logger.Errorf("Failed to put item into %s: %v", entity, describeAPIError(err))
	}
	return err
}

// UpdateByID applies a SET/REMOVE patch guarded by an optional condition
func (db *DynamoDBClient) UpdateByID(ctx context.Context, entity models.EntityType, id string, patch map[string]interface{}, cond *models.Condition) (bool, error) {
	if len(patch) == 0 {
		return false, errors.New("empty patch")
	}

	names := map[string]string{"#pk": primaryKey}
	values := map[string]types.AttributeValue{}
	var sets, removes []string

	fields := make([]string, 0, len(patch))
	for field := range patch {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for i, field := range fields {
		attrName := fmt.Sprintf("#u%d", i)
		names[attrName] = field
		if patch[field] == nil {
			removes = append(removes, attrName)
			continue
		}
		av, err := attributevalue.Marshal(patch[field])
		if err != nil {
			return false, fmt.Errorf("failed to marshal %s: %w", field, err)
		}
		attrValue := fmt.Sprintf(":u%d", i)
		values[attrValue] = av
		sets = append(sets, attrName+" = "+attrValue)
	}

	updateExpression := ""
	if len(sets) > 0 {
		updateExpression = "SET " + strings.Join(sets, ", ")
	}
	if len(removes) > 0 {
		updateExpression = strings.TrimSpace(updateExpression + " REMOVE " + strings.Join(removes, ", "))
	}

	conditionExpression := "attribute_exists(#pk)"
	for i, clause := range cond.Clauses() {
		name := fmt.Sprintf("#c%d", i)
		value := fmt.Sprintf(":c%d", i)
		names[name] = clause.Field
		if clause.IsEmpty {
			values[value+"empty"] = &types.AttributeValueMemberS{Value: ""}
			values[value+"null"] = &types.AttributeValueMemberS{Value: "NULL"}
			conditionExpression += fmt.Sprintf(" AND (attribute_not_exists(%s) OR %s = %sempty OR attribute_type(%s, %snull))", name, name, value, name, value)
			continue
		}
		av, err := attributevalue.Marshal(clause.Equals)
		if err != nil {
			return false, fmt.Errorf("failed to marshal condition: %w", err)
		}
		values[value] = av
		conditionExpression += " AND " + name + " = " + value
	}

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(db.TableName(entity)),
		Key: map[string]types.AttributeValue{
			primaryKey: &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:         aws.String(updateExpression),
		ConditionExpression:      aws.String(conditionExpression),
		ExpressionAttributeNames: names,
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}

	_, err := db.client.UpdateItem(ctx, input)
	if isConditionFailed(err) {
		db.logger.Infof("Conditional update on %s/%s did not apply", entity, id)
		return false, nil
	}
	if err != nil {
		db.logger.Errorf("Failed to update %s/%s: %v", entity, id, describeAPIError(err))
		return false, err
	}
	return true, nil
}

// DeleteMany deletes records by id and counts the ones that existed
func (db *DynamoDBClient) DeleteMany(ctx context.Context, entity models.EntityType, ids []string) (int64, error) {
	var deleted int64
	for _, id := range ids {
		output, err := db.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(db.TableName(entity)),
			Key: map[string]types.AttributeValue{
				primaryKey: &types.AttributeValueMemberS{Value: id},
			},
			ReturnValues: types.ReturnValueAllOld,
		})
		if err != nil {
			db.logger.Errorf("Failed to delete %s/%s: %v", entity, id, describeAPIError(err))
			return deleted, err
		}
		if len(output.Attributes) > 0 {
			deleted++
		}
	}
	return deleted, nil
}

// Increment bumps a counter item with an atomic ADD
func (db *DynamoDBClient) Increment(ctx context.Context, entity models.EntityType, id string) (int64, error) {
	output, err := db.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(db.TableName(entity)),
		Key: map[string]types.AttributeValue{
			primaryKey: &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:         aws.String("ADD #v :one"),
		ExpressionAttributeNames: map[string]string{"#v": "value"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		db.logger.Errorf("Failed to increment counter %s: %v", id, describeAPIError(err))
		return 0, err
	}

	n, ok := output.Attributes["value"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("counter %s returned no value", id)
	}
	return strconv.ParseInt(n.Value, 10, 64)
}

// Ping checks the connection by listing a single table
func (db *DynamoDBClient) Ping(ctx context.Context) error {
	_, err := db.client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	return err
}

func (db *DynamoDBClient) Close(ctx context.Context) error {
	return nil
}

// CreateTable creates a table
func (db *DynamoDBClient) CreateTable(ctx context.Context, input *dynamodb.CreateTableInput) error {
	_, err := db.client.CreateTable(ctx, input)
	return err
}

// DescribeTable describes a table
func (db *DynamoDBClient) DescribeTable(ctx context.Context, tableName string) (*dynamodb.DescribeTableOutput, error) {
	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}
	return db.client.DescribeTable(ctx, input)
}

// collect gathers matching items, stopping early once limit items are found
// (limit 0 means all).
func (db *DynamoDBClient) collect(ctx context.Context, entity models.EntityType, filter models.Filter, limit int) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	err := db.paginate(ctx, entity, filter, false, func(page []map[string]types.AttributeValue, _ int32) bool {
		items = append(items, page...)
		return limit == 0 || len(items) < limit
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// paginate runs a Query when one filter field has a secondary index and a
// Scan otherwise, feeding each page to fn until it returns false.
func (db *DynamoDBClient) paginate(ctx context.Context, entity models.EntityType, filter models.Filter, countOnly bool, fn func([]map[string]types.AttributeValue, int32) bool) error {
	indexName, keyField := db.pickIndex(entity, filter)

	var rest models.Filter
	if keyField != "" {
		rest = make(models.Filter, len(filter))
		for k, v := range filter {
			if k != keyField {
				rest[k] = v
			}
		}
	} else {
		rest = filter
	}

	filterExpr, names, values, err := buildFilterExpression(rest)
	if err != nil {
		return err
	}

	var startKey map[string]types.AttributeValue
	for {
		var (
			page  []map[string]types.AttributeValue
			count int32
			last  map[string]types.AttributeValue
		)

		if keyField != "" {
			keyValue, err := attributevalue.Marshal(filter[keyField])
			if err != nil {
				return fmt.Errorf("failed to marshal key %s: %w", keyField, err)
			}
			names["#kn0"] = keyField
			values[":kv0"] = keyValue

			input := &dynamodb.QueryInput{
				TableName:                 aws.String(db.TableName(entity)),
				IndexName:                 aws.String(indexName),
				KeyConditionExpression:    aws.String("#kn0 = :kv0"),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
				ExclusiveStartKey:         startKey,
			}
			if filterExpr != "" {
				input.FilterExpression = aws.String(filterExpr)
			}
			if countOnly {
				input.Select = types.SelectCount
			}
			output, err := db.client.Query(ctx, input)
			if err != nil {
				db.logger.Errorf("Failed to query %s on %s: %v", entity, indexName, describeAPIError(err))
				return err
			}
			page, count, last = output.Items, output.Count, output.LastEvaluatedKey
		} else {
			input := &dynamodb.ScanInput{
				TableName:         aws.String(db.TableName(entity)),
				ExclusiveStartKey: startKey,
			}
			if filterExpr != "" {
				input.FilterExpression = aws.String(filterExpr)
				input.ExpressionAttributeNames = names
				input.ExpressionAttributeValues = values
			}
			if countOnly {
				input.Select = types.SelectCount
			}
			output, err := db.client.Scan(ctx, input)
			if err != nil {
				db.logger.Errorf("Failed to scan %s: %v", entity, describeAPIError(err))
				return err
			}
			page, count, last = output.Items, output.Count, output.LastEvaluatedKey
		}

		if !fn(page, count) || len(last) == 0 {
			return nil
		}
		startKey = last
	}
}

func (db *DynamoDBClient) pickIndex(entity models.EntityType, filter models.Filter) (string, string) {
	indexes := secondaryIndexes[entity]
	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if name, ok := indexes[field]; ok {
			return name, field
		}
	}
	return "", ""
}

func buildFilterExpression(filter models.Filter) (string, map[string]string, map[string]types.AttributeValue, error) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	if len(filter) == 0 {
		return "", names, values, nil
	}

	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for i, field := range fields {
		av, err := attributevalue.Marshal(filter[field])
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to marshal filter %s: %w", field, err)
		}
		attrName := fmt.Sprintf("#f%d", i)
		attrValue := fmt.Sprintf(":f%d", i)
		names[attrName] = field
		values[attrValue] = av
		parts = append(parts, attrName+" = "+attrValue)
	}
	return strings.Join(parts, " AND "), names, values, nil
}

func onlyPrimaryKey(filter models.Filter) (string, bool) {
	if len(filter) != 1 {
		return "", false
	}
	id, ok := filter[primaryKey].(string)
	return id, ok
}

func compareAttributes(a, b types.AttributeValue) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if an, ok := a.(*types.AttributeValueMemberN); ok {
		if bn, ok := b.(*types.AttributeValueMemberN); ok {
			af, _ := strconv.ParseFloat(an.Value, 64)
			bf, _ := strconv.ParseFloat(bn.Value, 64)
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(attributeString(a), attributeString(b))
}

func attributeString(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberBOOL:
		return strconv.FormatBool(v.Value)
	}
	return ""
}

func pageItems[T any](items []T, skip, limit int) []T {
	if skip > 0 {
		if skip >= len(items) {
			return items[:0]
		}
		items = items[skip:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// describeAPIError adds the service error code when the SDK provides one
func describeAPIError(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err.Error()
}

// IsTableNotFound reports whether err means the table does not exist
func IsTableNotFound(err error) bool {
	var rnf *types.ResourceNotFoundException
	return errors.As(err, &rnf)
}
