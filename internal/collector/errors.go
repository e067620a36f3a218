package collector

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPlatform is returned by New on targets without a collector.
var ErrUnsupportedPlatform = errors.New("unsupported operating system")

// SchemaError reports tool output that does not have the expected shape.
type SchemaError struct {
	Source string
	Detail string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Source, e.Detail, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Source, e.Detail)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// DateTimeError reports a timestamp that matches none of the known layouts.
type DateTimeError struct {
	Raw string
	Err error
}

func (e *DateTimeError) Error() string {
	return fmt.Sprintf("invalid timestamp %q: %v", e.Raw, e.Err)
}

func (e *DateTimeError) Unwrap() error { return e.Err }
