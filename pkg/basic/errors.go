// Package basic implements the execution core of a classic line-oriented
// BASIC dialect: an expression compiler with multi-stage caching, a statement
// dispatcher with structured control flow, SUB/FUNCTION procedures, ON ERROR
// style error recovery and a DATA/READ literal pool.
package basic

import (
	"errors"
	"fmt"
)

// FaultKind classifies a runtime fault.
type FaultKind int

const (
	// FaultStructural marks program structure problems: missing labels,
	// mismatched block closers, running off the end of a block scan.
	FaultStructural FaultKind = iota
	// FaultEvaluation marks expression rewrite or evaluation failures.
	FaultEvaluation
	// FaultType marks bad operands for array or record access.
	FaultType
	// FaultRuntime marks classic runtime errors (ERROR statement, numeric codes).
	FaultRuntime
	// FaultResource marks I/O and other resource errors surfaced by collaborators.
	FaultResource
)

// Classic error codes. These match the dialect's historical error-code table
// and are what ERR reports inside an ON ERROR handler.
const (
	ErrCodeNextWithoutFor     = 1
	ErrCodeSyntax             = 2
	ErrCodeReturnWithoutGosub = 3
	ErrCodeOutOfData          = 4
	ErrCodeIllegalCall        = 5
	ErrCodeOverflow           = 6
	ErrCodeOutOfMemory        = 7
	ErrCodeLabelNotDefined    = 8
	ErrCodeSubscript          = 9
	ErrCodeDuplicateDef       = 10
	ErrCodeDivisionByZero     = 11
	ErrCodeTypeMismatch       = 13
	ErrCodeNoResume           = 19
	ErrCodeResumeWithoutError = 20
	ErrCodeInternal           = 51
	ErrCodeBadFileNumber      = 52
	ErrCodeFileNotFound       = 53
	ErrCodeBadFileMode        = 54
	ErrCodeFileAlreadyOpen    = 55
	ErrCodeDeviceIO           = 57
	ErrCodeInputPastEnd       = 62
)

var classicErrorText = map[int]string{
	ErrCodeNextWithoutFor:     "NEXT without FOR",
	ErrCodeSyntax:             "Syntax error",
	ErrCodeReturnWithoutGosub: "RETURN without GOSUB",
	ErrCodeOutOfData:          "Out of DATA",
	ErrCodeIllegalCall:        "Illegal function call",
	ErrCodeOverflow:           "Overflow",
	ErrCodeOutOfMemory:        "Out of memory",
	ErrCodeLabelNotDefined:    "Label not defined",
	ErrCodeSubscript:          "Subscript out of range",
	ErrCodeDuplicateDef:       "Duplicate definition",
	ErrCodeDivisionByZero:     "Division by zero",
	ErrCodeTypeMismatch:       "Type mismatch",
	ErrCodeNoResume:           "No RESUME",
	ErrCodeResumeWithoutError: "RESUME without error",
	ErrCodeInternal:           "Internal error",
	ErrCodeBadFileNumber:      "Bad file name or number",
	ErrCodeFileNotFound:       "File not found",
	ErrCodeBadFileMode:        "Bad file mode",
	ErrCodeFileAlreadyOpen:    "File already open",
	ErrCodeDeviceIO:           "Device I/O error",
	ErrCodeInputPastEnd:       "Input past end of file",
}

// ClassicErrorText returns the historical message for a numeric error code.
func ClassicErrorText(code int) string {
	if text, ok := classicErrorText[code]; ok {
		return text
	}
	return "Unhandled error"
}

// BasicError is a structured runtime fault: a message, a kind tag and the
// classic numeric code. It is the only error type routed through ON ERROR.
type BasicError struct {
	Kind    FaultKind
	Code    int
	Message string
	Line    int // source line number, 0 if unknown
	PC      int // statement index, -1 if unknown
}

func (e *BasicError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s in line %d", e.Message, e.Line)
	}
	return e.Message
}

// NewBasicError builds a fault with the classic text for the given code.
func NewBasicError(kind FaultKind, code int) *BasicError {
	return &BasicError{Kind: kind, Code: code, Message: ClassicErrorText(code), PC: -1}
}

// NewBasicErrorf builds a fault with a specific message.
func NewBasicErrorf(kind FaultKind, code int, format string, args ...interface{}) *BasicError {
	return &BasicError{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), PC: -1}
}

// asBasicError normalizes any error into a *BasicError so the handler path
// always has a code and kind to work with.
func asBasicError(err error) *BasicError {
	var be *BasicError
	if errors.As(err, &be) {
		return be
	}
	return &BasicError{Kind: FaultRuntime, Code: ErrCodeInternal, Message: err.Error(), PC: -1}
}

// Sentinel errors for host-level conditions that are not program faults.
var (
	ErrNoProgramLoaded       = errors.New("no program loaded")
	ErrProgramAlreadyRunning = errors.New("program already running")
	ErrInputNotExpected      = errors.New("no input expected")
	ErrNilFileSystem         = errors.New("filesystem not available")
)
