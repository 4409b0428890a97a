package chat

import (
	"encoding/json"
	"reflect"
	"strings"
)

// unknownMessage is the message used when nothing better can be extracted.
const unknownMessage = "Unknown error"

// NormalizedError is the single user-visible error shape. Every failure,
// regardless of which provider produced it or how it was wrapped, is reduced
// to this form before reaching the caller.
type NormalizedError struct {
	// Message is the human-readable error message.
	Message string `json:"message"`

	// Details carries any extra JSON-serializable fields found on the
	// original error. It is nil (never an empty map) when nothing extra
	// was present.
	Details map[string]interface{} `json:"details,omitempty"`

	// HTTPStatus is the HTTP status code, 0 when the transport did not
	// supply one. It is threaded through normalization unchanged.
	HTTPStatus int `json:"http_status,omitempty"`
}

// Error implements the error interface.
func (e *NormalizedError) Error() string {
	return e.Message
}

// clone returns a copy with an independent Details map.
func (e *NormalizedError) clone() *NormalizedError {
	cp := *e
	if e.Details != nil {
		cp.Details = make(map[string]interface{}, len(e.Details))
		for k, v := range e.Details {
			cp.Details[k] = v
		}
	}
	return &cp
}

// Normalize collapses an arbitrary error value into a NormalizedError.
//
// The rules, applied recursively:
//
//  1. A non-empty slice or array normalizes to its first element.
//  2. nil becomes {message: "Unknown error", details: nil}.
//  3. A plain string becomes {message: string, details: nil}.
//  4. An error value contributes its trimmed Error() text as the message and
//     any JSON-serializable exported fields as details.
//  5. An object with a nested "error" field recurses into the nested value;
//     when the nested value is itself an object, the outer object's
//     serializable fields (excluding "message" and "error") are merged into
//     the details, nested fields winning on collision.
//  6. An object exposing a non-empty "message" field uses that message, with
//     the remaining serializable fields as details.
//  7. Anything else becomes {message: "Unknown error", details: nil}.
//
// Normalizing an already normalized error returns an equal copy, so the
// operation is idempotent.
func Normalize(v interface{}) *NormalizedError {
	return NormalizeWithStatus(v, 0)
}

// NormalizeWithStatus normalizes v and attaches the given HTTP status code.
// A zero status leaves any status carried by v intact.
func NormalizeWithStatus(v interface{}, status int) *NormalizedError {
	ne := normalizeValue(v)
	if status != 0 {
		ne.HTTPStatus = status
	}
	return ne
}

func normalizeValue(v interface{}) *NormalizedError {
	switch x := v.(type) {
	case nil:
		return &NormalizedError{Message: unknownMessage}
	case *NormalizedError:
		if x == nil {
			return &NormalizedError{Message: unknownMessage}
		}
		return x.clone()
	case NormalizedError:
		return x.clone()
	case string:
		if x == "" {
			return &NormalizedError{Message: unknownMessage}
		}
		return &NormalizedError{Message: x}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return &NormalizedError{Message: unknownMessage}
		}
		return normalizeValue(rv.Index(0).Interface())
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return &NormalizedError{Message: unknownMessage}
		}
	}

	if err, ok := v.(error); ok {
		msg := strings.TrimSpace(err.Error())
		if msg == "" {
			msg = unknownMessage
		}
		details := serializableFields(v)
		return &NormalizedError{Message: msg, Details: details}
	}

	decoded, ok := decodeJSON(v)
	if !ok {
		return &NormalizedError{Message: unknownMessage}
	}
	return normalizeDecoded(decoded)
}

// normalizeDecoded applies the normalization rules to a value already in
// plain JSON form (string, []interface{}, map[string]interface{}, ...).
func normalizeDecoded(v interface{}) *NormalizedError {
	switch x := v.(type) {
	case nil:
		return &NormalizedError{Message: unknownMessage}
	case string:
		if x == "" {
			return &NormalizedError{Message: unknownMessage}
		}
		return &NormalizedError{Message: x}
	case []interface{}:
		if len(x) == 0 {
			return &NormalizedError{Message: unknownMessage}
		}
		return normalizeDecoded(x[0])
	case map[string]interface{}:
		if nested, ok := x["error"]; ok && nested != nil {
			inner := normalizeDecoded(nested)
			if nestedMap, isObject := nested.(map[string]interface{}); isObject {
				merged := make(map[string]interface{})
				for k, val := range x {
					if k == "message" || k == "error" {
						continue
					}
					merged[k] = val
				}
				// Nested fields take precedence on key collision. The nested
				// object's own fields are merged directly so they survive
				// even when it carries no message of its own.
				for k, val := range nestedMap {
					if k == "message" || k == "error" {
						continue
					}
					merged[k] = val
				}
				for k, val := range inner.Details {
					merged[k] = val
				}
				if len(merged) > 0 {
					inner.Details = merged
				}
			}
			return inner
		}
		if msg, ok := x["message"].(string); ok && msg != "" {
			rest := make(map[string]interface{})
			for k, val := range x {
				if k == "message" {
					continue
				}
				rest[k] = val
			}
			if len(rest) == 0 {
				rest = nil
			}
			return &NormalizedError{Message: msg, Details: rest}
		}
		return &NormalizedError{Message: unknownMessage}
	default:
		// Numbers, booleans, and anything else carry no usable message.
		return &NormalizedError{Message: unknownMessage}
	}
}

// decodeJSON round-trips a value through encoding/json into plain form,
// dropping non-serializable fields. Returns false when the value cannot be
// serialized at all (functions, channels, cycles).
func decodeJSON(v interface{}) (interface{}, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, false
	}
	return decoded, true
}

// serializableFields extracts the JSON-serializable fields of an error value
// as a details map, excluding any "message" field (already captured). Returns
// nil when there is nothing extra.
func serializableFields(v interface{}) map[string]interface{} {
	decoded, ok := decodeJSON(v)
	if !ok {
		return nil
	}
	m, ok := decoded.(map[string]interface{})
	if !ok {
		return nil
	}
	delete(m, "message")
	if len(m) == 0 {
		return nil
	}
	return m
}
