package command

import "fmt"

// ParseErrorKind categorizes parsing errors
type ParseErrorKind int

const (
	// ErrKindUnknownCommand indicates no keyword matched
	ErrKindUnknownCommand ParseErrorKind = iota
	// ErrKindMissingArgument indicates a required argument was not provided
	ErrKindMissingArgument
	// ErrKindInvalidNumber indicates a malformed or out-of-range integer
	ErrKindInvalidNumber
	// ErrKindDuplicateAxis indicates an axis given twice
	ErrKindDuplicateAxis
	// ErrKindIncompleteAxes indicates a command needing x, y and z got fewer
	ErrKindIncompleteAxes
	// ErrKindNegativeValue indicates a negative value in an unsigned set
	ErrKindNegativeValue
	// ErrKindTrailingInput indicates unconsumed text after the command
	ErrKindTrailingInput
)

// ParseError reports why a line could not be turned into a Cmd
type ParseError struct {
	Kind  ParseErrorKind
	Value string // The offending text
	Pos   int    // Byte offset into the line
}

// Error implements the error interface
func (e *ParseError) Error() string {
	switch e.Kind {
	case ErrKindUnknownCommand:
		return fmt.Sprintf("unknown command '%s'", e.Value)
	case ErrKindMissingArgument:
		return fmt.Sprintf("missing argument at %d", e.Pos)
	case ErrKindInvalidNumber:
		return fmt.Sprintf("invalid number '%s' at %d", e.Value, e.Pos)
	case ErrKindDuplicateAxis:
		return fmt.Sprintf("axis '%s' given twice", e.Value)
	case ErrKindIncompleteAxes:
		return "x, y and z are all required"
	case ErrKindNegativeValue:
		return fmt.Sprintf("negative value for axis '%s'", e.Value)
	case ErrKindTrailingInput:
		return fmt.Sprintf("unexpected input '%s' at %d", e.Value, e.Pos)
	default:
		return fmt.Sprintf("parse error: %s", e.Value)
	}
}

func newParseError(kind ParseErrorKind, value string, pos int) error {
	return &ParseError{Kind: kind, Value: value, Pos: pos}
}
