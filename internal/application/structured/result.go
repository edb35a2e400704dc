// Package structured decodes and validates JSON produced by the generation
// capability into typed payloads.
package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxSnippetLength bounds the diagnostic excerpt kept for invalid output
const MaxSnippetLength = 200

// Result is either a valid payload or the reason the output was rejected
type Result[T any] struct {
	payload *T
	reason  string
	snippet string
}

// Valid wraps an accepted payload
func Valid[T any](payload *T) Result[T] {
	return Result[T]{payload: payload}
}

// Invalid records why raw output was rejected
func Invalid[T any](reason, raw string) Result[T] {
	return Result[T]{reason: reason, snippet: Snippet(raw)}
}

// IsValid reports whether the result holds a payload
func (r Result[T]) IsValid() bool { return r.payload != nil }

// Payload returns the accepted payload, nil when invalid
func (r Result[T]) Payload() *T { return r.payload }

// Reason returns why the output was rejected
func (r Result[T]) Reason() string { return r.reason }

// Snippet returns the truncated offending output
func (r Result[T]) Snippet() string { return r.snippet }

// Decode strips code fences, unmarshals raw into T and validates it
func Decode[T any](raw string, validate *validator.Validate) Result[T] {
	body := StripCodeFences(raw)
	if body == "" {
		return Invalid[T]("empty output", raw)
	}

	var payload T
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return Invalid[T](fmt.Sprintf("invalid JSON: %v", err), raw)
	}
	if err := validate.Struct(&payload); err != nil {
		return Invalid[T](fmt.Sprintf("schema violation: %s", describe(err)), raw)
	}
	return Valid(&payload)
}

// StripCodeFences removes surrounding markdown fences and any prose before
// the first JSON value or after the last one
func StripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if newline := strings.IndexByte(text, '\n'); newline >= 0 {
			text = text[newline+1:]
		} else {
			text = strings.TrimPrefix(text, "json")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	text = strings.TrimSpace(text)

	first := -1
	for start := 0; start < len(text); start++ {
		if text[start] != '{' && text[start] != '[' {
			continue
		}
		if first < 0 {
			first = start
		}
		if span := jsonSpan(text, start); json.Valid([]byte(span)) {
			return span
		}
	}
	if first < 0 {
		return text
	}
	return jsonSpan(text, first)
}

// jsonSpan returns text from start through the last matching closer
func jsonSpan(text string, start int) string {
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return text[start:]
	}
	return text[start : end+1]
}

// Snippet truncates raw output for diagnostics
func Snippet(raw string) string {
	runes := []rune(strings.TrimSpace(raw))
	if len(runes) <= MaxSnippetLength {
		return string(runes)
	}
	return string(runes[:MaxSnippetLength])
}

func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// Int accepts a JSON number, a numeric string or null
type Int int

// UnmarshalJSON implements json.Unmarshaler
func (i *Int) UnmarshalJSON(data []byte) error {
	f, err := parseNumber(data)
	if err != nil {
		return err
	}
	rounded := math.Round(f)
	if rounded < math.MinInt32 || rounded > math.MaxInt32 {
		return fmt.Errorf("number out of range: %g", f)
	}
	*i = Int(int(rounded))
	return nil
}

// Float accepts a JSON number, a numeric string or null
type Float float64

// UnmarshalJSON implements json.Unmarshaler
func (f *Float) UnmarshalJSON(data []byte) error {
	v, err := parseNumber(data)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

func parseNumber(data []byte) (float64, error) {
	text := strings.TrimSpace(string(data))
	if text == "null" || text == `""` {
		return 0, nil
	}
	text = strings.Trim(text, `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %s", text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %s", text)
	}
	return v, nil
}

