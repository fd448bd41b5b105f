package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/International-Combat-Archery-Alliance/guest-registration/guests"
	"github.com/International-Combat-Archery-Alliance/guest-registration/slices"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

var _ guests.Store = &DB{}

const (
	guestEntityName = "GUEST"

	// registeredAtSortLayout is fixed width so GSI1SK sorts by registration time.
	registeredAtSortLayout = "20060102T150405Z"
)

type guestDynamo struct {
	PK     string
	SK     string
	GSI1PK string
	GSI1SK string

	Name         string
	NameLower    string
	Email        string
	EmailLower   string
	DateOfBirth  string
	City         string
	State        string
	Country      string
	Profession   string
	RegisteredAt time.Time
}

func guestPK(email string) string {
	return fmt.Sprintf("%s#%s", guestEntityName, guests.NormalizeEmail(email))
}

func guestSK(email string) string {
	return guestPK(email)
}

// guestGSI1SK orders guests by registration time, then by insertionKey for
// guests registered in the same second.
func guestGSI1SK(g guests.Guest, insertionKey uuid.UUID) string {
	return fmt.Sprintf("%s#%s#%s", guestEntityName, g.RegisteredAt.UTC().Format(registeredAtSortLayout), insertionKey)
}

// newInsertionKey returns a UUIDv7; keys made in this process sort in the
// order they were made.
func newInsertionKey() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

func guestToDynamo(g guests.Guest) guestDynamo {
	return guestDynamo{
		PK:           guestPK(g.Email),
		SK:           guestSK(g.Email),
		GSI1PK:       guestEntityName,
		GSI1SK:       guestGSI1SK(g, newInsertionKey()),
		Name:         g.Name,
		NameLower:    strings.ToLower(g.Name),
		Email:        g.Email,
		EmailLower:   strings.ToLower(g.Email),
		DateOfBirth:  g.DateOfBirth.Format(guests.DateLayout),
		City:         g.City,
		State:        g.State,
		Country:      g.Country,
		Profession:   g.Profession,
		RegisteredAt: g.RegisteredAt.UTC(),
	}
}

func dynamoToGuest(g guestDynamo) (guests.Guest, error) {
	dob, err := time.Parse(guests.DateLayout, g.DateOfBirth)
	if err != nil {
		return guests.Guest{}, fmt.Errorf("invalid date of birth %q for %q: %w", g.DateOfBirth, g.PK, err)
	}

	return guests.Guest{
		Name:         g.Name,
		Email:        g.Email,
		DateOfBirth:  dob,
		City:         g.City,
		State:        g.State,
		Country:      g.Country,
		Profession:   g.Profession,
		RegisteredAt: g.RegisteredAt.UTC(),
	}, nil
}

func (d *DB) Append(ctx context.Context, guest guests.Guest) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	item, err := attributevalue.MarshalMap(guestToDynamo(guest))
	if err != nil {
		return guests.NewFailedToTranslateToDBModelError("Failed to convert Guest to guestDynamo", err)
	}

	expr := exprMustBuild(expression.NewBuilder().WithCondition(emailUnclaimedCondition()))

	_, err = d.dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(d.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var condCheckFailedErr *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailedErr) {
			return guests.NewDuplicateEmailError(guest.Email, err)
		} else if errors.Is(err, context.DeadlineExceeded) {
			return guests.NewTimeoutError("Append timed out")
		} else {
			return guests.NewFailedToWriteError("Failed PutItem call", err)
		}
	}

	return nil
}

func (d *DB) ListAll(ctx context.Context) ([]guests.Guest, error) {
	return d.queryAll(ctx, "ListAll", nil)
}

// Search filters on the lowercased name and email copies stored with each
// guest, since DynamoDB's contains() is case sensitive.
func (d *DB) Search(ctx context.Context, query string) ([]guests.Guest, error) {
	q := strings.ToLower(query)
	if q == "" {
		return d.ListAll(ctx)
	}

	filter := expression.Name("NameLower").Contains(q).
		Or(expression.Name("EmailLower").Contains(q))

	return d.queryAll(ctx, "Search", &filter)
}

func (d *DB) queryAll(ctx context.Context, op string, filter *expression.ConditionBuilder) ([]guests.Guest, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	builder := expression.NewBuilder().WithKeyCondition(guestsKeyCondition())
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	expr := exprMustBuild(builder)

	input := &dynamodb.QueryInput{
		IndexName:                 aws.String(gsi1),
		TableName:                 aws.String(d.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	}

	result := []guests.Guest{}
	paginator := dynamodb.NewQueryPaginator(d.dynamoClient, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, guests.NewTimeoutError(fmt.Sprintf("%s timed out", op))
			}
			return nil, guests.NewFailedToFetchError("Failed to fetch guests from dynamo", err)
		}

		pageGuests, err := d.unmarshalGuests(ctx, page.Items)
		if err != nil {
			return nil, err
		}
		result = append(result, pageGuests...)
	}

	return result, nil
}

func (d *DB) ListPage(ctx context.Context, limit int32, cursor *string) (guests.ListResponse, error) {
	limit = guests.PageLimit(limit)

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	expr := exprMustBuild(expression.NewBuilder().WithKeyCondition(guestsKeyCondition()))

	var startKey map[string]types.AttributeValue
	if cursor != nil {
		var err error
		startKey, err = guestPageStartKey(*cursor)
		if err != nil {
			return guests.ListResponse{}, guests.NewInvalidCursorError("Invalid cursor", err)
		}
	}

	result, err := d.dynamoClient.Query(ctx, &dynamodb.QueryInput{
		IndexName:                 aws.String(gsi1),
		TableName:                 aws.String(d.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		// Oldest registration first, same as the file store
		ScanIndexForward: aws.Bool(true),
		// Fetch 1 more than limit to check if there is another page or not
		Limit:             aws.Int32(limit + 1),
		ExclusiveStartKey: startKey,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return guests.ListResponse{}, guests.NewTimeoutError("ListPage timed out")
		}
		if cursor != nil && isValidationError(err) {
			return guests.ListResponse{}, guests.NewInvalidCursorError("Cursor does not match this table", err)
		}
		return guests.ListResponse{}, guests.NewFailedToFetchError("Failed to fetch guests from dynamo", err)
	}

	data, err := d.unmarshalGuests(ctx, result.Items)
	if err != nil {
		return guests.ListResponse{}, err
	}

	hasNextPage := len(result.Items) > int(limit)

	var newCursor *string
	if hasNextPage {
		// The extra item fetched above is not handed out, so the page ends at limit-1
		c, err := guestPageCursor(result.Items[limit-1])
		if err != nil {
			panic(fmt.Sprintf("failed to make cursor from guest item: %s", err))
		}
		newCursor = &c
	}

	return guests.ListResponse{
		Data:        data[:min(int(limit), len(data))],
		Cursor:      newCursor,
		HasNextPage: hasNextPage,
	}, nil
}

func guestsKeyCondition() expression.KeyConditionBuilder {
	return expression.Key("GSI1PK").Equal(expression.Value(guestEntityName)).
		And(expression.Key("GSI1SK").BeginsWith(guestEntityName))
}

// unmarshalGuests treats a page with an undecodable item as empty, the same
// way the file store treats a corrupted file.
func (d *DB) unmarshalGuests(ctx context.Context, items []map[string]types.AttributeValue) ([]guests.Guest, error) {
	var dynamoItems []guestDynamo
	err := attributevalue.UnmarshalListOfMaps(items, &dynamoItems)
	if err == nil {
		var result []guests.Guest
		result, err = slices.MapErr(dynamoItems, dynamoToGuest)
		if err == nil {
			return result, nil
		}
	}

	d.logger.WarnContext(ctx, "Guest items could not be decoded, treating them as empty", slog.String("error", err.Error()))
	return []guests.Guest{}, nil
}

func isValidationError(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationException"
}
