package infrastructure

import (
	"testing"

	"casetrack-backend/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTable(t *testing.T) {
	for _, entity := range models.AllEntities {
		t.Run(string(entity), func(t *testing.T) {
			input, err := GetTable(entity, "test_"+string(entity))
			require.NoError(t, err)

			assert.Equal(t, "test_"+string(entity), aws.ToString(input.TableName))
			assert.Equal(t, types.BillingModePayPerRequest, input.BillingMode)
			require.Len(t, input.KeySchema, 1)
			assert.Equal(t, "id", aws.ToString(input.KeySchema[0].AttributeName))
			assert.Equal(t, types.KeyTypeHash, input.KeySchema[0].KeyType)
			assert.Nil(t, input.ProvisionedThroughput)
		})
	}
}

func TestGetTableUnknownEntity(t *testing.T) {
	_, err := GetTable(models.EntityType("invoices"), "test_invoices")
	assert.Error(t, err)
}

func TestIndexNames(t *testing.T) {
	assert.ElementsMatch(t, []string{"caseId-index", "serialNumber-index", "status-index"}, IndexNames(models.EntityDTR))
	assert.Equal(t, []string{"rmaNumber-index"}, IndexNames(models.EntityRMA))
	assert.Equal(t, []string{"siteCode-index"}, IndexNames(models.EntitySite))
	assert.Empty(t, IndexNames(models.EntityCounter))
}

func TestToDynamoInputProvisioned(t *testing.T) {
	schema := &TableSchema{
		AttributeDefinitions: []AttributeDefinition{
			{AttributeName: "id", AttributeType: "S"},
			{AttributeName: "caseId", AttributeType: "S"},
		},
		KeySchema:             []KeySchemaElement{{AttributeName: "id", KeyType: "HASH"}},
		ProvisionedThroughput: &Throughput{ReadCapacityUnits: 5, WriteCapacityUnits: 2},
		GlobalSecondaryIndexes: []GlobalSecondaryIndex{{
			IndexName:  "caseId-index",
			KeySchema:  []KeySchemaElement{{AttributeName: "caseId", KeyType: "HASH"}},
			Projection: Projection{ProjectionType: "ALL"},
		}},
	}

	input := schema.ToDynamoInput("prod_dtrs")

	assert.Equal(t, types.BillingModeProvisioned, input.BillingMode)
	assert.Equal(t, int64(5), aws.ToInt64(input.ProvisionedThroughput.ReadCapacityUnits))
	require.Len(t, input.GlobalSecondaryIndexes, 1)
	gsi := input.GlobalSecondaryIndexes[0]
	assert.Equal(t, "caseId-index", aws.ToString(gsi.IndexName))
	assert.Equal(t, types.ProjectionTypeAll, gsi.Projection.ProjectionType)
	assert.Equal(t, int64(2), aws.ToInt64(gsi.ProvisionedThroughput.WriteCapacityUnits))
}
