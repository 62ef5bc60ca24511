// Package outfmt renders CLI output as JSON, optionally filtered through a
// jq expression.
package outfmt

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/itchyny/gojq"
)

// NormalizeExpression fixes shell-escaped operators in jq expressions.
// Zsh escapes ! to \! even in single quotes, breaking operators like !=.
func NormalizeExpression(expr string) string {
	return strings.ReplaceAll(expr, `\!`, `!`)
}

// Apply runs a jq expression over data (any JSON-marshalable value).
// An empty expression returns data unchanged. Queries producing a single
// result collapse to that result; multiple results come back as a slice.
func Apply(data any, expression string) (any, error) {
	if expression == "" {
		return data, nil
	}
	query, err := gojq.Parse(NormalizeExpression(expression))
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}

	// gojq operates on plain maps/slices, so round-trip through JSON first.
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal for jq: %w", err)
	}
	var plain any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, fmt.Errorf("unmarshal for jq: %w", err)
	}

	var results []any
	iter := query.Run(plain)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("jq error: %w", err)
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// WriteJSON marshals v (after the optional jq expression) to w, indented,
// with a trailing newline.
func WriteJSON(w io.Writer, v any, jqExpr string) error {
	out, err := Apply(v, jqExpr)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
