package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"casetrack-backend/utils/datenorm"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// FlexTime is a timestamp that tolerates the malformed values older imports
// left in storage. Decoding runs them through the date normalizer; encoding
// always writes RFC 3339.
type FlexTime struct {
	time.Time
}

func NewFlexTime(t time.Time) FlexTime {
	return FlexTime{Time: t.UTC()}
}

func (f FlexTime) MarshalJSON() ([]byte, error) {
	if f.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(f.UTC().Format(time.RFC3339Nano))
}

func (f *FlexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		f.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f.Time = decodeStoredTime(s)
		return nil
	}
	serial, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		f.Time = time.Time{}
		return nil
	}
	t, _ := datenorm.FromSerial(serial)
	f.Time = t
	return nil
}

func (f FlexTime) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	if f.IsZero() {
		return &types.AttributeValueMemberNULL{Value: true}, nil
	}
	return &types.AttributeValueMemberS{Value: f.UTC().Format(time.RFC3339Nano)}, nil
}

func (f *FlexTime) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		f.Time = decodeStoredTime(v.Value)
	case *types.AttributeValueMemberN:
		serial, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			f.Time = time.Time{}
			return nil
		}
		t, _ := datenorm.FromSerial(serial)
		f.Time = t
	default:
		f.Time = time.Time{}
	}
	return nil
}

func decodeStoredTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if t, ok := datenorm.RepairStored(s); ok {
		return t
	}
	if t, ok := datenorm.Parse(s); ok {
		return t
	}
	return time.Time{}
}
