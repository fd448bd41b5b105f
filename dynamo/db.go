package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	gsi1 = "GSI1"

	// listTimeout bounds reads that walk every page of the guest index.
	listTimeout = 5 * time.Second
)

// DB stores guests in one table: an item per normalized email, and every guest
// under a single GSI1 partition sorted by registration time.
type DB struct {
	dynamoClient *dynamodb.Client
	tableName    string
	logger       *slog.Logger
}

func NewDB(dynamoClient *dynamodb.Client, tableName string, logger *slog.Logger) *DB {
	return &DB{
		dynamoClient: dynamoClient,
		tableName:    tableName,
		logger:       logger,
	}
}

// emailUnclaimedCondition only lets a put through when no guest holds the key yet.
func emailUnclaimedCondition() expression.ConditionBuilder {
	return expression.Name("PK").AttributeNotExists()
}

func exprMustBuild(builder expression.Builder) expression.Expression {
	expr, err := builder.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build dynamo expression: %s", err))
	}

	return expr
}

// EnsureTable creates the guest table and its GSI1 index if the table does not
// exist yet. Deployed tables are provisioned outside the service, so this is
// only called against local DynamoDB.
func (d *DB) EnsureTable(ctx context.Context) error {
	_, err := d.dynamoClient.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:            aws.String(d.tableName),
		BillingMode:          types.BillingModePayPerRequest,
		AttributeDefinitions: stringAttributes("PK", "SK", "GSI1PK", "GSI1SK"),
		KeySchema:            keySchema("PK", "SK"),
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName:  aws.String(gsi1),
				KeySchema:  keySchema("GSI1PK", "GSI1SK"),
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("failed to create table %s: %w", d.tableName, err)
	}

	d.logger.InfoContext(ctx, "Created guest table", slog.String("table", d.tableName))
	return nil
}

func stringAttributes(names ...string) []types.AttributeDefinition {
	defs := make([]types.AttributeDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: types.ScalarAttributeTypeS,
		})
	}
	return defs
}

func keySchema(hashKey, rangeKey string) []types.KeySchemaElement {
	return []types.KeySchemaElement{
		{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
		{AttributeName: aws.String(rangeKey), KeyType: types.KeyTypeRange},
	}
}
