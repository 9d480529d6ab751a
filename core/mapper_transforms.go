package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func normalizeTransform(transform string) string {
	candidate := strings.TrimSpace(strings.ToLower(transform))
	if candidate == "" {
		return "identity"
	}
	return candidate
}

func isSupportedTransform(transform string) bool {
	switch normalizeTransform(transform) {
	case "identity",
		"trim",
		"lowercase",
		"uppercase",
		"to_string",
		"to_int",
		"to_bool",
		"unix_time_to_rfc3339":
		return true
	default:
		return false
	}
}

func applyValueTransform(transform string, value any) (any, error) {
	switch normalizeTransform(transform) {
	case "identity":
		return value, nil
	case "trim":
		text, err := requireString(value)
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(text), nil
	case "lowercase":
		text, err := requireString(value)
		if err != nil {
			return nil, err
		}
		return strings.ToLower(text), nil
	case "uppercase":
		text, err := requireString(value)
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(text), nil
	case "to_string":
		return fmt.Sprint(value), nil
	case "to_int":
		return coerceInt(value)
	case "to_bool":
		return coerceBool(value)
	case "unix_time_to_rfc3339":
		seconds, err := coerceInt(value)
		if err != nil {
			return nil, err
		}
		return time.Unix(seconds, 0).UTC().Format(time.RFC3339), nil
	default:
		return nil, fmt.Errorf("core: unsupported transform %q", transform)
	}
}

// applyInboundTransform maps a storage value back to its canonical form.
// Transforms whose storage representation differs from their input are
// inverted; the normalizing transforms are idempotent on their own output and
// re-apply as-is, which also cleans up values edited out of band.
func applyInboundTransform(transform string, value any) (any, error) {
	switch normalizeTransform(transform) {
	case "unix_time_to_rfc3339":
		text, err := requireString(value)
		if err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("core: parse %q as RFC3339: %w", text, err)
		}
		return parsed.Unix(), nil
	default:
		return applyValueTransform(transform, value)
	}
}

func requireString(value any) (string, error) {
	text, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("core: expected string value, got %T", value)
	}
	return text, nil
}

func coerceInt(value any) (int64, error) {
	switch typed := value.(type) {
	case int:
		return int64(typed), nil
	case int32:
		return int64(typed), nil
	case int64:
		return typed, nil
	case float64:
		return int64(typed), nil
	case json.Number:
		return typed.Int64()
	case string:
		candidate := strings.TrimSpace(typed)
		if candidate == "" {
			return 0, fmt.Errorf("core: empty string is not an integer")
		}
		parsed, err := strconv.ParseInt(candidate, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("core: parse %q as integer: %w", typed, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("core: cannot convert %T to integer", value)
	}
}

func coerceBool(value any) (bool, error) {
	switch typed := value.(type) {
	case bool:
		return typed, nil
	case int:
		return typed != 0, nil
	case int64:
		return typed != 0, nil
	case float64:
		return typed != 0, nil
	case string:
		switch strings.TrimSpace(strings.ToLower(typed)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		default:
			return false, fmt.Errorf("core: parse %q as bool", typed)
		}
	default:
		return false, fmt.Errorf("core: cannot convert %T to bool", value)
	}
}
