// Package merge implements the JSON deep-merge used for partial entity updates.
//
// Maps merge recursively with source winning per key; arrays and every other
// type combination are replaced wholesale by source. Inputs are never mutated.
package merge

import "encoding/json"

// Merge combines target with source and returns the result. Both inputs are
// plain JSON trees as produced by encoding/json (nil, bool, float64, string,
// []any, map[string]any). The returned value shares no structure with either
// input.
func Merge(target, source any) any {
	targetMap, targetOK := target.(map[string]any)
	sourceMap, sourceOK := source.(map[string]any)
	if !targetOK || !sourceOK {
		return Clone(source)
	}

	result := make(map[string]any, len(targetMap)+len(sourceMap))
	for key, value := range targetMap {
		result[key] = Clone(value)
	}
	for key, sourceValue := range sourceMap {
		if targetValue, ok := targetMap[key]; ok {
			result[key] = Merge(targetValue, sourceValue)
		} else {
			result[key] = Clone(sourceValue)
		}
	}
	return result
}

// JSON merges two raw JSON documents.
func JSON(target, source json.RawMessage) (json.RawMessage, error) {
	var targetValue any
	if err := json.Unmarshal(target, &targetValue); err != nil {
		return nil, err
	}

	var sourceValue any
	if err := json.Unmarshal(source, &sourceValue); err != nil {
		return nil, err
	}

	return json.Marshal(Merge(targetValue, sourceValue))
}

// Clone deep-copies a JSON tree so callers can hand out values without
// aliasing the original.
func Clone(value any) any {
	switch v := value.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, item := range v {
			result[key] = Clone(item)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = Clone(item)
		}
		return result
	default:
		return v
	}
}
