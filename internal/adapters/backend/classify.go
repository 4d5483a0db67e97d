package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind tags the outcome of classifying a backend response.
type Kind int

const (
	// KindSuccess is the {status: "success", data} envelope; Payload is data.
	KindSuccess Kind = iota + 1
	// KindPassthrough is a 2xx body without a status field; Payload is the body.
	KindPassthrough
	// KindFailure is everything else; Message and Body describe it.
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindPassthrough:
		return "passthrough"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is a classified backend response.
type Outcome struct {
	Kind    Kind
	Payload json.RawMessage
	Message string
	Body    any
}

// Classify applies the envelope rules to a response that is not a 401.
// It returns *MalformedResponseError when the body is not JSON. An empty body
// is treated as an empty object.
func Classify(status int, statusText string, body []byte) (Outcome, error) {
	text := bytes.TrimSpace(body)
	if len(text) == 0 {
		text = []byte("{}")
	}
	if !json.Valid(text) {
		msg := statusText
		if msg == "" {
			msg = malformedFallback
		}
		return Outcome{}, &MalformedResponseError{Status: status, Message: msg}
	}

	obj, isObject := parseObject(text)
	statusField, hasStatus := obj.get("status")

	if isObject && hasStatus && isJSONString(statusField, "success") {
		data, ok := obj.get("data")
		if !ok {
			data = json.RawMessage("null")
		}
		return Outcome{Kind: KindSuccess, Payload: data}, nil
	}

	if status >= 200 && status < 300 && !hasStatus {
		return Outcome{Kind: KindPassthrough, Payload: json.RawMessage(text)}, nil
	}

	var decoded any
	_ = json.Unmarshal(text, &decoded)
	return Outcome{
		Kind:    KindFailure,
		Message: failureMessage(obj, status, statusText),
		Body:    decoded,
		Payload: json.RawMessage(text),
	}, nil
}

// failureMessage picks the human-readable message for a failed response:
// message/error, then the errors field map, then every other top-level key,
// then the status text.
func failureMessage(obj object, status int, statusText string) string {
	for _, key := range []string{"message", "error"} {
		if v, ok := obj.get(key); ok && truthy(v) {
			return jsString(v)
		}
	}

	if v, ok := obj.get("errors"); ok {
		if fields, isObj := parseObject(v); isObj {
			if msg := joinFieldErrors(fields, false); msg != "" {
				return msg
			}
		}
	}

	if obj != nil {
		rest := make(object, 0, len(obj))
		for _, f := range obj {
			if f.Key != "status" && f.Key != "data" {
				rest = append(rest, f)
			}
		}
		if msg := joinFieldErrors(rest, true); msg != "" {
			return msg
		}
	}

	if statusText != "" {
		return statusText
	}
	return fmt.Sprintf("Request failed with status %d", status)
}

// joinFieldErrors renders "field: m1, m2; other: m3" in enumeration order.
func joinFieldErrors(fields object, humanize bool) string {
	parts := make([]string, 0, len(fields))
	for _, f := range enumerationOrder(fields) {
		name := f.Key
		if humanize {
			name = strings.ReplaceAll(name, "_", " ")
		}
		parts = append(parts, name+": "+strings.Join(fieldMessages(f.Value), ", "))
	}
	return strings.Join(parts, "; ")
}

// enumerationOrder lists array-index keys ("0", "12") first in ascending numeric
// order, then the remaining keys in document order.
func enumerationOrder(fields object) object {
	ordered := slices.Clone(fields)
	slices.SortStableFunc(ordered, func(a, b field) int {
		ai, aok := arrayIndex(a.Key)
		bi, bok := arrayIndex(b.Key)
		switch {
		case aok && bok:
			return int(ai) - int(bi)
		case aok:
			return -1
		case bok:
			return 1
		default:
			return 0
		}
	})
	return ordered
}

// arrayIndex reports whether key is a canonical non-negative integer below 2^32-1.
func arrayIndex(key string) (int64, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseInt(key, 10, 64)
	if err != nil || n < 0 || n >= math.MaxUint32 || key[0] == '+' {
		return 0, false
	}
	return n, true
}

func fieldMessages(v json.RawMessage) []string {
	var items []json.RawMessage
	if firstByte(v) == '[' && json.Unmarshal(v, &items) == nil {
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, joinElement(item))
		}
		return out
	}
	return []string{jsString(v)}
}

type field struct {
	Key   string
	Value json.RawMessage
}

// object is a JSON object with its keys in document order.
type object []field

func (o object) get(key string) (json.RawMessage, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// parseObject decodes a JSON object keeping key order. A repeated key keeps its
// first position and its last value.
func parseObject(data []byte) (object, bool) {
	if firstByte(data) != '{' {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, false
	}
	obj := object{}
	seen := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, false
		}
		if i, dup := seen[key]; dup {
			obj[i].Value = v
			continue
		}
		seen[key] = len(obj)
		obj = append(obj, field{Key: key, Value: v})
	}
	return obj, true
}

func firstByte(v []byte) byte {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

func isJSONString(v json.RawMessage, want string) bool {
	var s string
	return firstByte(v) == '"' && json.Unmarshal(v, &s) == nil && s == want
}

// truthy mirrors what a script would consider a usable message value.
func truthy(v json.RawMessage) bool {
	switch firstByte(v) {
	case 0, 'n', 'f':
		return false
	case '"':
		var s string
		return json.Unmarshal(v, &s) == nil && s != ""
	case '[', '{', 't':
		return true
	default:
		n, err := strconv.ParseFloat(string(bytes.TrimSpace(v)), 64)
		return err == nil && n != 0
	}
}

// jsString renders a JSON value as display text: strings unquoted, arrays
// comma-joined, objects as compact JSON, everything else verbatim.
func jsString(v json.RawMessage) string {
	switch firstByte(v) {
	case '"':
		var s string
		if json.Unmarshal(v, &s) == nil {
			return s
		}
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(v, &items) == nil {
			out := make([]string, 0, len(items))
			for _, item := range items {
				out = append(out, joinElement(item))
			}
			return strings.Join(out, ",")
		}
	case '{':
		var buf bytes.Buffer
		if json.Compact(&buf, v) == nil {
			return buf.String()
		}
	}
	return string(bytes.TrimSpace(v))
}

// joinElement renders an array element; null elements render empty.
func joinElement(v json.RawMessage) string {
	if firstByte(v) == 'n' {
		return ""
	}
	return jsString(v)
}
