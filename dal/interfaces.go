package dal

import (
	"context"
	"errors"

	"casetrack-backend/models"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// ErrDuplicateKey is returned by Insert when a record with the same id exists
var ErrDuplicateKey = errors.New("record with this id already exists")

// CaseStoreInterface defines the contract every case store backend offers
type CaseStoreInterface interface {
	// Core CRUD operations
	FindOne(ctx context.Context, entity models.EntityType, filter models.Filter, result interface{}) (bool, error)
	Find(ctx context.Context, entity models.EntityType, filter models.Filter, opts models.FindOptions, results interface{}) error
	Count(ctx context.Context, entity models.EntityType, filter models.Filter) (int64, error)
	Insert(ctx context.Context, entity models.EntityType, record interface{}) error

	// UpdateByID applies patch (nil values remove the field). It reports
	// false without error when the record is missing or cond does not hold.
	UpdateByID(ctx context.Context, entity models.EntityType, id string, patch map[string]interface{}, cond *models.Condition) (bool, error)
	DeleteMany(ctx context.Context, entity models.EntityType, ids []string) (int64, error)

	// Increment atomically adds one to a named counter and returns the new value
	Increment(ctx context.Context, entity models.EntityType, id string) (int64, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// TableAdminInterface is implemented by backends whose tables must be
// provisioned ahead of time
type TableAdminInterface interface {
	CreateTable(ctx context.Context, input *dynamodb.CreateTableInput) error
	DescribeTable(ctx context.Context, tableName string) (*dynamodb.DescribeTableOutput, error)
}
