package dynamo

import (
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// A page cursor is the GSI1 start key of the last guest handed out, as
// attribute-value JSON in URL-safe base64 so it can travel in a query string.
var guestPageKeyAttrs = []string{"PK", "SK", "GSI1PK", "GSI1SK"}

func guestPageCursor(lastGuestItem map[string]types.AttributeValue) (string, error) {
	key := make(map[string]types.AttributeValue, len(guestPageKeyAttrs))
	for _, attr := range guestPageKeyAttrs {
		v, ok := lastGuestItem[attr]
		if !ok {
			return "", fmt.Errorf("guest item has no %s attribute", attr)
		}
		key[attr] = v
	}

	bytesJSON, err := attributevalue.MarshalMapJSON(key)
	if err != nil {
		return "", fmt.Errorf("failed to encode to JSON: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(bytesJSON), nil
}

func guestPageStartKey(cursor string) (map[string]types.AttributeValue, error) {
	bytesJSON, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to b64 decode: %w", err)
	}

	key, err := attributevalue.UnmarshalMapJSON(bytesJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to json decode: %w", err)
	}

	if len(key) != len(guestPageKeyAttrs) {
		return nil, fmt.Errorf("cursor has %d key attributes, want %d", len(key), len(guestPageKeyAttrs))
	}
	for _, attr := range guestPageKeyAttrs {
		if _, ok := key[attr].(*types.AttributeValueMemberS); !ok {
			return nil, fmt.Errorf("cursor attribute %s is missing or not a string", attr)
		}
	}
	if key["GSI1PK"].(*types.AttributeValueMemberS).Value != guestEntityName {
		return nil, fmt.Errorf("cursor does not point into the guest index")
	}

	return key, nil
}
