package core

// errors.go defines the operation-level error taxonomy.
//
// Row-scoped failures are RowError values (types.go) collected into batch
// results; everything here aborts the whole operation and rolls back.

import (
	"errors"
	"fmt"
)

// MaxReportedErrors is the default cap on row errors returned to callers.
// Results carry the total count so partial success can still be reported.
var MaxReportedErrors = 50

// ConfigurationError indicates a reference to a sub-portfolio, load cycle,
// header, or alias that does not exist, or a requested duplicate.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// SchemaGuardError indicates a schema mutation attempted while the table
// still holds rows. The schema is left unchanged.
type SchemaGuardError struct {
	Table string
	Rows  int64
}

func (e *SchemaGuardError) Error() string {
	return fmt.Sprintf("table %s holds %d rows; clear its data before changing the schema", e.Table, e.Rows)
}

// IsSchemaGuardError reports whether err is a SchemaGuardError.
func IsSchemaGuardError(err error) bool {
	var se *SchemaGuardError
	return errors.As(err, &se)
}

// FormatOverrideError indicates a physical-type override outside the
// whitelist for its semantic type.
type FormatOverrideError struct {
	Type     SemanticType
	Override string
}

func (e *FormatOverrideError) Error() string {
	return fmt.Sprintf("format override %q is not valid for %s headers", e.Override, e.Type)
}

// IsFormatOverrideError reports whether err is a FormatOverrideError.
func IsFormatOverrideError(err error) bool {
	var fe *FormatOverrideError
	return errors.As(err, &fe)
}

// FatalStorageError wraps a storage failure that is not attributable to a
// single row's data: connection loss, or a batch statement itself failing.
type FatalStorageError struct {
	Op  string
	Err error
}

func (e *FatalStorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *FatalStorageError) Unwrap() error { return e.Err }

func storageError(op string, err error) error {
	return &FatalStorageError{Op: op, Err: err}
}

// IsFatalStorageError reports whether err is a FatalStorageError.
func IsFatalStorageError(err error) bool {
	var fse *FatalStorageError
	return errors.As(err, &fse)
}

// capErrors truncates a row-error list to max entries, returning the capped
// list and the original total.
func capErrors(errs []RowError, max int) ([]RowError, int) {
	total := len(errs)
	if max > 0 && total > max {
		return errs[:max], total
	}
	return errs, total
}
