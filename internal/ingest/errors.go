package ingest

import (
	"errors"
	"fmt"
)

// ErrInputSchema is matched by every *SchemaError.
var ErrInputSchema = errors.New("input schema error")

// SchemaError describes a missing column or an unparseable value. Row is the
// 1-based data row (header excluded) and is zero for column-level errors.
type SchemaError struct {
	Column string
	Row    int
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("input schema: column %s, row %d: %s", e.Column, e.Row, e.Reason)
	}
	return fmt.Sprintf("input schema: column %s: %s", e.Column, e.Reason)
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrInputSchema
}

func missingColumn(col Field) error {
	return &SchemaError{Column: string(col), Reason: "required column is missing"}
}

func badValue(col Field, row int, format string, args ...any) error {
	return &SchemaError{Column: string(col), Row: row, Reason: fmt.Sprintf(format, args...)}
}
