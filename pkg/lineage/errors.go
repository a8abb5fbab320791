package lineage

import (
	"errors"
	"fmt"
)

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

var (
	// ErrColumnNotFound is returned by Lineage when no output column of the
	// statement matches the requested identifier.
	ErrColumnNotFound = errors.New("column not found in select list")

	// ErrUnknownDialect is returned by LookupDialect for unregistered names.
	ErrUnknownDialect = errors.New("unknown dialect")
)

// Common error messages
const (
	errUnexpectedToken    = "unexpected token %s, expected %s"
	errUnterminatedString = "unterminated string literal"
	errUnterminatedIdent  = "unterminated quoted identifier"
	errIllegalCharacter   = "illegal character %q"
	errNestingTooDeep     = "expression nesting exceeds %d levels"
	errTrailingInput      = "unexpected %s after end of statement"
)
