package dal

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Records cross the mongo and memory backends as generic JSON documents so
// that custom marshalers (FlexTime, AssigneeInput) apply the same way they do
// on the HTTP boundary.

func toDocument(record interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("record is not an object: %w", err)
	}
	return doc, nil
}

func normalizeValue(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeFilter(filter map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(filter))
	for field, value := range filter {
		nv, err := normalizeValue(value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", field, err)
		}
		out[field] = nv
	}
	return out, nil
}

func fromDocument(doc interface{}, out interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func matchesFilter(doc map[string]interface{}, filter map[string]interface{}) bool {
	for field, want := range filter {
		if !reflect.DeepEqual(doc[field], want) {
			return false
		}
	}
	return true
}

func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	}
	return false
}

func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
