// Package jsonpath extracts values from JSON documents using a JSONPath
// subset ($.a.b[0]) or native gjson syntax.
package jsonpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrEmptyPath is returned by Compile for an empty expression.
	ErrEmptyPath = errors.New("empty JSONPath expression")
	// ErrInvalidJSON is returned when the document is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")
	// ErrNotFound is returned when the path does not match.
	ErrNotFound = errors.New("path not found")
)

// Path is a compiled extraction path.
type Path struct {
	expr  string
	gpath string
}

// Compile converts a JSONPath expression to gjson syntax.
func Compile(expr string) (Path, error) {
	if strings.TrimSpace(expr) == "" {
		return Path{}, ErrEmptyPath
	}
	return Path{expr: expr, gpath: convertToGjsonPath(expr)}, nil
}

// String returns the original expression.
func (p Path) String() string { return p.expr }

// Get looks the path up in doc.
func (p Path) Get(doc []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(doc) {
		return gjson.Result{}, ErrInvalidJSON
	}
	result := gjson.GetBytes(doc, p.gpath)
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("%w: %s", ErrNotFound, p.expr)
	}
	return result, nil
}

// Extract returns the value at path as a string. Null is returned as "null".
func Extract(doc []byte, expr string) (string, error) {
	p, err := Compile(expr)
	if err != nil {
		return "", err
	}
	result, err := p.Get(doc)
	if err != nil {
		return "", err
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// convertToGjsonPath converts a JSONPath expression to a gjson path format
func convertToGjsonPath(path string) string {
	if path == "$" {
		return "@this"
	}

	// Expressions without the $ root are already gjson paths
	if !strings.HasPrefix(path, "$") {
		return path
	}
	path = strings.TrimPrefix(path, "$")
	if path == "" {
		return "@this"
	}

	// Bracket notation becomes dotted: $['a'][0] -> a.0
	path = strings.NewReplacer("['", ".", "[\"", ".", "']", "", "\"]", "", "[", ".", "]", "").Replace(path)
	return strings.TrimPrefix(path, ".")
}
