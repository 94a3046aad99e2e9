package expressions

import (
	"sync"

	"github.com/rendis/tileflow/pkg/schema"
)

// programCache memoizes compiled programs by source text. Safe for
// concurrent use; a failed compile is not cached.
type programCache[P any] struct {
	lang    string
	compile func(string) (P, error)

	mu       sync.RWMutex
	programs map[string]P
}

func newProgramCache[P any](lang string, compile func(string) (P, error)) *programCache[P] {
	return &programCache[P]{lang: lang, compile: compile, programs: make(map[string]P)}
}

func (c *programCache[P]) get(expression string) (P, error) {
	if expression == "" {
		var zero P
		return zero, schema.NewErrorf(schema.ErrCodeExpression, "empty %s expression", c.lang)
	}

	c.mu.RLock()
	p, ok := c.programs[expression]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.programs[expression]; ok {
		return p, nil
	}
	p, err := c.compile(expression)
	if err != nil {
		return p, err
	}
	c.programs[expression] = p
	return p, nil
}

func (c *programCache[P]) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// expressionError wraps a compile or run failure of one expression.
func expressionError(lang, stage, expression string, err error) *schema.TileflowError {
	return schema.NewErrorf(schema.ErrCodeExpression, "%s %s %q: %s", lang, stage, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"expression": expression, "language": lang})
}
