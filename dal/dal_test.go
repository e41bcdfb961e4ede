package dal

import (
	"context"
	"testing"
	"time"

	"casetrack-backend/models"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// MockLogger implements the logger interface for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(args ...interface{})                 { m.Called(args) }
func (m *MockLogger) Debugf(format string, args ...interface{}) { m.Called(format, args) }
func (m *MockLogger) Info(args ...interface{})                  { m.Called(args) }
func (m *MockLogger) Infof(format string, args ...interface{})  { m.Called(format, args) }
func (m *MockLogger) Warn(args ...interface{})                  { m.Called(args) }
func (m *MockLogger) Warnf(format string, args ...interface{})  { m.Called(format, args) }
func (m *MockLogger) Error(args ...interface{})                 { m.Called(args) }
func (m *MockLogger) Errorf(format string, args ...interface{}) { m.Called(format, args) }
func (m *MockLogger) Fatal(args ...interface{})                 { m.Called(args) }
func (m *MockLogger) Fatalf(format string, args ...interface{}) { m.Called(format, args) }

func newMockLogger() *MockLogger {
	l := &MockLogger{}
	for _, method := range []string{"Debug", "Info", "Warn", "Error"} {
		l.On(method, mock.Anything).Return().Maybe()
		l.On(method+"f", mock.Anything, mock.Anything).Return().Maybe()
	}
	return l
}

type record struct {
	ID        string          `json:"id" dynamodbav:"id"`
	CaseID    string          `json:"caseId" dynamodbav:"caseId"`
	Status    string          `json:"status" dynamodbav:"status"`
	Rank      int             `json:"rank" dynamodbav:"rank"`
	Link      string          `json:"link,omitempty" dynamodbav:"link,omitempty"`
	ErrorDate models.FlexTime `json:"errorDate" dynamodbav:"errorDate"`
	UpdatedAt time.Time       `json:"updatedAt" dynamodbav:"updatedAt"`
}

// MemoryStoreTestSuite exercises the store contract on the in-process backend
type MemoryStoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	store *MemoryStore
	now   time.Time
}

func (suite *MemoryStoreTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = NewMemoryStore(newMockLogger())
	suite.now = time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC)

	for i, status := range []string{"Open", "Closed", "Open"} {
		err := suite.store.Insert(suite.ctx, models.EntityDTR, record{
			ID:        string(rune('a' + i)),
			CaseID:    "DTR-00000" + string(rune('1'+i)),
			Status:    status,
			Rank:      3 - i,
			UpdatedAt: suite.now,
		})
		require.NoError(suite.T(), err)
	}
}

func (suite *MemoryStoreTestSuite) TestInsertRejectsDuplicateID() {
	err := suite.store.Insert(suite.ctx, models.EntityDTR, record{ID: "a"})
	assert.ErrorIs(suite.T(), err, ErrDuplicateKey)
}

func (suite *MemoryStoreTestSuite) TestFindOneByField() {
	var got record
	found, err := suite.store.FindOne(suite.ctx, models.EntityDTR, models.Filter{"caseId": "DTR-000002"}, &got)

	require.NoError(suite.T(), err)
	assert.True(suite.T(), found)
	assert.Equal(suite.T(), "b", got.ID)
	assert.True(suite.T(), suite.now.Equal(got.UpdatedAt))
}

func (suite *MemoryStoreTestSuite) TestFindOneMissing() {
	var got record
	found, err := suite.store.FindOne(suite.ctx, models.EntityDTR, models.Filter{"id": "zzz"}, &got)

	require.NoError(suite.T(), err)
	assert.False(suite.T(), found)
}

func (suite *MemoryStoreTestSuite) TestFindSortsAndPages() {
	var got []record
	err := suite.store.Find(suite.ctx, models.EntityDTR, models.Filter{}, models.FindOptions{SortBy: "rank", Limit: 2}, &got)

	require.NoError(suite.T(), err)
	require.Len(suite.T(), got, 2)
	assert.Equal(suite.T(), "c", got[0].ID)
	assert.Equal(suite.T(), "b", got[1].ID)

	got = nil
	err = suite.store.Find(suite.ctx, models.EntityDTR, models.Filter{"status": "Open"}, models.FindOptions{SortBy: "rank", SortDesc: true, Skip: 1}, &got)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got, 1)
	assert.Equal(suite.T(), "c", got[0].ID)
}

func (suite *MemoryStoreTestSuite) TestCount() {
	n, err := suite.store.Count(suite.ctx, models.EntityDTR, models.Filter{"status": "Open"})

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), n)
}

func (suite *MemoryStoreTestSuite) TestUpdateByIDConditions() {
	cond := &models.Condition{Field: "updatedAt", Equals: suite.now}
	ok, err := suite.store.UpdateByID(suite.ctx, models.EntityDTR, "a", map[string]interface{}{"status": "In Progress"}, cond)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), ok)

	stale := &models.Condition{Field: "updatedAt", Equals: suite.now.Add(-time.Second)}
	ok, err = suite.store.UpdateByID(suite.ctx, models.EntityDTR, "a", map[string]interface{}{"status": "Closed"}, stale)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), ok)

	var got record
	_, err = suite.store.FindOne(suite.ctx, models.EntityDTR, models.Filter{"id": "a"}, &got)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "In Progress", got.Status)
}

func (suite *MemoryStoreTestSuite) TestUpdateByIDEmptyCondition() {
	empty := &models.Condition{Field: "link", IsEmpty: true}

	ok, err := suite.store.UpdateByID(suite.ctx, models.EntityDTR, "a", map[string]interface{}{"link": "RMA-2024-000001"}, empty)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), ok)

	ok, err = suite.store.UpdateByID(suite.ctx, models.EntityDTR, "a", map[string]interface{}{"link": "RMA-2024-000002"}, empty)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), ok)

	ok, err = suite.store.UpdateByID(suite.ctx, models.EntityDTR, "a", map[string]interface{}{"link": nil}, nil)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), ok)

	var got record
	_, err = suite.store.FindOne(suite.ctx, models.EntityDTR, models.Filter{"id": "a"}, &got)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), got.Link)
}

func (suite *MemoryStoreTestSuite) TestUpdateByIDCompoundCondition() {
	guarded := func(updatedAt time.Time) *models.Condition {
		return &models.Condition{
			Field:   "link",
			IsEmpty: true,
			And:     []models.Condition{{Field: "updatedAt", Equals: updatedAt}},
		}
	}

	ok, err := suite.store.UpdateByID(suite.ctx, models.EntityDTR, "a", map[string]interface{}{"link": "RMA-2024-000001"}, guarded(suite.now.Add(-time.Second)))
	require.NoError(suite.T(), err)
	assert.False(suite.T(), ok, "stale updatedAt must block the write even though link is empty")

	ok, err = suite.store.UpdateByID(suite.ctx, models.EntityDTR, "a", map[string]interface{}{"link": "RMA-2024-000001"}, guarded(suite.now))
	require.NoError(suite.T(), err)
	assert.True(suite.T(), ok)

	ok, err = suite.store.UpdateByID(suite.ctx, models.EntityDTR, "a", map[string]interface{}{"link": "RMA-2024-000002"}, guarded(suite.now))
	require.NoError(suite.T(), err)
	assert.False(suite.T(), ok)
}

func (suite *MemoryStoreTestSuite) TestUpdateByIDMissingRecord() {
	ok, err := suite.store.UpdateByID(suite.ctx, models.EntityDTR, "nope", map[string]interface{}{"status": "Closed"}, nil)

	require.NoError(suite.T(), err)
	assert.False(suite.T(), ok)
}

func (suite *MemoryStoreTestSuite) TestDeleteManyCountsExisting() {
	n, err := suite.store.DeleteMany(suite.ctx, models.EntityDTR, []string{"a", "c", "missing"})

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), n)

	left, err := suite.store.Count(suite.ctx, models.EntityDTR, models.Filter{})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), left)
}

func (suite *MemoryStoreTestSuite) TestIncrement() {
	for want := int64(1); want <= 3; want++ {
		got, err := suite.store.Increment(suite.ctx, models.EntityCounter, "dtr")
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), want, got)
	}
}

func (suite *MemoryStoreTestSuite) TestBogusStoredDateIsRepairedOnRead() {
	err := suite.store.Insert(suite.ctx, models.EntityDTR, map[string]interface{}{
		"id":        "legacy",
		"errorDate": "+045000-01-01T00:00:00.000Z",
	})
	require.NoError(suite.T(), err)

	var got record
	_, err = suite.store.FindOne(suite.ctx, models.EntityDTR, models.Filter{"id": "legacy"}, &got)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2023, got.ErrorDate.Year())
}

func TestMemoryStoreTestSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreTestSuite))
}

// MockDynamoAPI implements dynamoAPI for testing
type MockDynamoAPI struct {
	mock.Mock
	dynamoAPI
}

func (m *MockDynamoAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

func (m *MockDynamoAPI) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.UpdateItemOutput), args.Error(1)
}

func (m *MockDynamoAPI) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.QueryOutput), args.Error(1)
}

func TestDynamoDBClient(t *testing.T) {
	cfg := &models.Config{DynamoDBTablePrefix: "casetrack"}

	t.Run("insert maps failed condition to duplicate key", func(t *testing.T) {
		api := &MockDynamoAPI{}
		api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
			return *in.TableName == "casetrack_dtrs" && *in.ConditionExpression == "attribute_not_exists(#pk)"
		})).Return(nil, &types.ConditionalCheckFailedException{})

		db := newDynamoDBClient(api, cfg, newMockLogger())
		err := db.Insert(context.Background(), models.EntityDTR, record{ID: "a"})

		assert.ErrorIs(t, err, ErrDuplicateKey)
		api.AssertExpectations(t)
	})

	t.Run("conditional update reports not matched", func(t *testing.T) {
		api := &MockDynamoAPI{}
		api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
			return in.ExpressionAttributeNames["#c0"] == "rmaCaseNumber" &&
				*in.ConditionExpression == "attribute_exists(#pk) AND (attribute_not_exists(#c0) OR #c0 = :c0empty OR attribute_type(#c0, :c0null))"
		})).Return(nil, &types.ConditionalCheckFailedException{})

		db := newDynamoDBClient(api, cfg, newMockLogger())
		ok, err := db.UpdateByID(context.Background(), models.EntityDTR, "a",
			map[string]interface{}{"rmaCaseNumber": "RMA-2024-000001"},
			&models.Condition{Field: "rmaCaseNumber", IsEmpty: true})

		require.NoError(t, err)
		assert.False(t, ok)
		api.AssertExpectations(t)
	})

	t.Run("compound condition joins every clause", func(t *testing.T) {
		api := &MockDynamoAPI{}
		api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
			_, hasStamp := in.ExpressionAttributeValues[":c1"]
			return in.ExpressionAttributeNames["#c0"] == "rmaCaseNumber" &&
				in.ExpressionAttributeNames["#c1"] == "updatedAt" && hasStamp &&
				*in.ConditionExpression == "attribute_exists(#pk) AND (attribute_not_exists(#c0) OR #c0 = :c0empty OR attribute_type(#c0, :c0null)) AND #c1 = :c1"
		})).Return(&dynamodb.UpdateItemOutput{}, nil)

		db := newDynamoDBClient(api, cfg, newMockLogger())
		ok, err := db.UpdateByID(context.Background(), models.EntityDTR, "a",
			map[string]interface{}{"rmaCaseNumber": "RMA-2024-000001"},
			&models.Condition{
				Field:   "rmaCaseNumber",
				IsEmpty: true,
				And:     []models.Condition{{Field: "updatedAt", Equals: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}},
			})

		require.NoError(t, err)
		assert.True(t, ok)
		api.AssertExpectations(t)
	})

	t.Run("filter on indexed field uses query", func(t *testing.T) {
		api := &MockDynamoAPI{}
		api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return *in.IndexName == "caseId-index"
		})).Return(&dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{{
				"id":     &types.AttributeValueMemberS{Value: "a"},
				"caseId": &types.AttributeValueMemberS{Value: "DTR-000001"},
			}},
			Count: 1,
		}, nil)

		db := newDynamoDBClient(api, cfg, newMockLogger())
		var got record
		found, err := db.FindOne(context.Background(), models.EntityDTR, models.Filter{"caseId": "DTR-000001"}, &got)

		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "a", got.ID)
		api.AssertExpectations(t)
	})
}
