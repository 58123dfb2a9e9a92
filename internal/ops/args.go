package ops

import "fmt"

// Args are the exported script values passed to an op.
type Args []any

// String returns argument i as a string.
func (a Args) String(i int) (string, error) {
	if i >= len(a) {
		return "", fmt.Errorf("%w: missing argument %d", ErrArgument, i)
	}
	s, ok := a[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %d must be a string, got %T", ErrArgument, i, a[i])
	}
	return s, nil
}

// Float returns argument i as a number. Integers exported by the engine are
// accepted.
func (a Args) Float(i int) (float64, error) {
	if i >= len(a) {
		return 0, fmt.Errorf("%w: missing argument %d", ErrArgument, i)
	}
	switch v := a[i].(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: argument %d must be a number, got %T", ErrArgument, i, a[i])
	}
}
