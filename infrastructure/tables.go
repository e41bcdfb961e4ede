package infrastructure

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"casetrack-backend/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tidwall/gjson"
)

type TableSchema struct {
	AttributeDefinitions   []AttributeDefinition  `json:"AttributeDefinitions"`
	KeySchema              []KeySchemaElement     `json:"KeySchema"`
	ProvisionedThroughput  *Throughput            `json:"ProvisionedThroughput,omitempty"`
	GlobalSecondaryIndexes []GlobalSecondaryIndex `json:"GlobalSecondaryIndexes,omitempty"`
}

type AttributeDefinition struct {
	AttributeName string `json:"AttributeName"`
	AttributeType string `json:"AttributeType"`
}

type KeySchemaElement struct {
	AttributeName string `json:"AttributeName"`
	KeyType       string `json:"KeyType"`
}

type Throughput struct {
	ReadCapacityUnits  int64 `json:"ReadCapacityUnits"`
	WriteCapacityUnits int64 `json:"WriteCapacityUnits"`
}

type GlobalSecondaryIndex struct {
	IndexName             string             `json:"IndexName"`
	KeySchema             []KeySchemaElement `json:"KeySchema"`
	Projection            Projection         `json:"Projection"`
	ProvisionedThroughput *Throughput        `json:"ProvisionedThroughput,omitempty"`
}

type Projection struct {
	ProjectionType string `json:"ProjectionType"`
}

//go:embed table_schema.json
var tablesSchema []byte

// GetTable returns the CreateTableInput for entity, named tableName
func GetTable(entity models.EntityType, tableName string) (*dynamodb.CreateTableInput, error) {
	tableJSON := gjson.GetBytes(tablesSchema, string(entity))
	if !tableJSON.Exists() {
		return nil, fmt.Errorf("table schema not found for entity: %s", entity)
	}

	var schema TableSchema
	if err := json.Unmarshal([]byte(tableJSON.Raw), &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema JSON: %w", err)
	}
	return schema.ToDynamoInput(tableName), nil
}

// IndexNames lists the secondary indexes declared for entity
func IndexNames(entity models.EntityType) []string {
	names := []string{}
	for _, name := range gjson.GetBytes(tablesSchema, string(entity)+".GlobalSecondaryIndexes.#.IndexName").Array() {
		names = append(names, name.String())
	}
	return names
}

// ToDynamoInput converts the schema. Tables without provisioned throughput
// are created on demand.
func (ts *TableSchema) ToDynamoInput(tableName string) *dynamodb.CreateTableInput {
	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(tableName),
		BillingMode: types.BillingModePayPerRequest,
	}
	if ts.ProvisionedThroughput != nil {
		input.BillingMode = types.BillingModeProvisioned
		input.ProvisionedThroughput = ts.ProvisionedThroughput.toDynamo()
	}

	for _, a := range ts.AttributeDefinitions {
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(a.AttributeName),
			AttributeType: types.ScalarAttributeType(a.AttributeType),
		})
	}
	input.KeySchema = toKeySchema(ts.KeySchema)

	for _, g := range ts.GlobalSecondaryIndexes {
		gsi := types.GlobalSecondaryIndex{
			IndexName: aws.String(g.IndexName),
			KeySchema: toKeySchema(g.KeySchema),
			Projection: &types.Projection{
				ProjectionType: types.ProjectionType(g.Projection.ProjectionType),
			},
		}
		if ts.ProvisionedThroughput != nil {
			throughput := g.ProvisionedThroughput
			if throughput == nil {
				throughput = ts.ProvisionedThroughput
			}
			gsi.ProvisionedThroughput = throughput.toDynamo()
		}
		input.GlobalSecondaryIndexes = append(input.GlobalSecondaryIndexes, gsi)
	}
	return input
}

func (t *Throughput) toDynamo() *types.ProvisionedThroughput {
	return &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(t.ReadCapacityUnits),
		WriteCapacityUnits: aws.Int64(t.WriteCapacityUnits),
	}
}

func toKeySchema(elements []KeySchemaElement) []types.KeySchemaElement {
	keySchema := make([]types.KeySchemaElement, 0, len(elements))
	for _, k := range elements {
		keySchema = append(keySchema, types.KeySchemaElement{
			AttributeName: aws.String(k.AttributeName),
			KeyType:       types.KeyType(k.KeyType),
		})
	}
	return keySchema
}
