package logging

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

const clipLimit = 240

// Truncate flattens value onto one line and clips it for status bars and inline notices.
func Truncate(value string) string {
	value = strings.TrimSpace(value)
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	if value == "" {
		return "<empty>"
	}
	if len(value) > clipLimit {
		return value[:clipLimit] + "..."
	}
	return value
}

func FormatEventLine(event Event) string {
	ts := event.Time.Format("15:04:05")
	level := strings.ToUpper(event.Level.String())
	var fields strings.Builder
	for _, key := range orderedFieldKeys(event.Fields) {
		fields.WriteByte(' ')
		fields.WriteString(key)
		fields.WriteByte('=')
		fields.WriteString(formatFieldValue(event.Fields[key]))
	}
	return fmt.Sprintf("%s [%s] %s%s\n", ts, level, event.Message, fields.String())
}

func formatFieldValue(value any) string {
	if value == nil {
		return "<nil>"
	}
	if pretty, ok := prettyJSONString(value); ok {
		return pretty
	}
	return fmt.Sprintf("%v", value)
}

func marshalPrettyJSON(value any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// prettyJSONString renders containers and JSON-shaped strings as indented JSON.
// Plain text, including text with an embedded JSON suffix, is reported as not JSON.
func prettyJSONString(value any) (string, bool) {
	if value == nil {
		return "", false
	}
	if errValue, ok := value.(error); ok {
		return prettyJSONString(errValue.Error())
	}
	if textValue, ok := value.(encoding.TextMarshaler); ok {
		if text, err := textValue.MarshalText(); err == nil {
			return prettyJSONString(string(text))
		}
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	value = rv.Interface()

	switch v := value.(type) {
	case string:
		return parseJSONContainer(v)
	case []byte:
		return parseJSONContainer(string(v))
	case json.RawMessage:
		return parseJSONContainer(string(v))
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if out, err := marshalPrettyJSON(value); err == nil {
			return out, true
		}
	}
	return "", false
}

func parseJSONContainer(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return "", false
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return "", false
	}
	out, err := marshalPrettyJSON(decoded)
	if err != nil {
		return "", false
	}
	return out, true
}

// orderedFieldKeys sorts inline scalars first, then JSON blocks, then payload-like JSON blocks.
func orderedFieldKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	inline := make([]string, 0, len(keys))
	var jsonKeys, payloadKeys []string
	for _, key := range keys {
		if _, ok := prettyJSONString(fields[key]); !ok {
			inline = append(inline, key)
			continue
		}
		if isPayloadFieldKey(key) {
			payloadKeys = append(payloadKeys, key)
		} else {
			jsonKeys = append(jsonKeys, key)
		}
	}
	return append(append(inline, jsonKeys...), payloadKeys...)
}

func isPayloadFieldKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "payload", "response", "request", "body", "data", "item":
		return true
	default:
		return false
	}
}
