package steps

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wesleyorama2/loadphase/internal/session"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.-]*)\s*\}\}`)

// Template is a string with {{var}} placeholders resolved against session
// variables.
type Template struct {
	literals []string
	vars     []string
}

// ParseTemplate splits text into literals and variable references.
func ParseTemplate(text string) Template {
	var t Template
	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(text, -1) {
		t.literals = append(t.literals, text[last:m[0]])
		t.vars = append(t.vars, text[m[2]:m[3]])
		last = m[1]
	}
	t.literals = append(t.literals, text[last:])
	return t
}

// Vars returns the referenced variable names.
func (t Template) Vars() []string {
	return t.vars
}

// IsConstant reports whether the template has no placeholders.
func (t Template) IsConstant() bool {
	return len(t.vars) == 0
}

// Render substitutes the current variable values.
func (t Template) Render(s *session.Session) (string, error) {
	if t.IsConstant() {
		return t.literals[0], nil
	}
	var sb strings.Builder
	for i, name := range t.vars {
		sb.WriteString(t.literals[i])
		value, err := lookup(s, name)
		if err != nil {
			return "", err
		}
		sb.WriteString(value)
	}
	sb.WriteString(t.literals[len(t.literals)-1])
	return sb.String(), nil
}

func lookup(s *session.Session, name string) (string, error) {
	if v, err := s.GetInt(name); err == nil {
		return strconv.Itoa(v), nil
	} else if errors.Is(err, session.ErrVariableNotSet) {
		return "", err
	}
	v, err := s.GetObject(name)
	if err != nil {
		return "", err
	}
	switch v := v.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}
