// Package dfserrors implements the error taxonomy shared by the Naming
// Server, Storage Servers, and client: every failure that reaches a wire
// reply is one of these codes, rendered as a single ERR line.
package dfserrors

import "fmt"

// Code enumerates the error taxonomy.
type Code int

const (
	FileNotFound Code = iota
	NoAccess
	NoWriteAccess
	FileExists
	InvalidArgs
	SentenceLocked
	SentenceOutOfRange
	WordOutOfRange
	SSNotAvailable
	SSNotReachable
	SSNoResponse
	NotLoggedIn
	OnlyOwner
	UnknownCommand
	SystemError
	FolderNotEmpty
	NotLocked
)

// defaultMessages holds the literal reply bodies clients match on.
var defaultMessages = map[Code]string{
	FileNotFound:       "not found",
	NoAccess:           "no access",
	NoWriteAccess:      "no write access",
	FileExists:         "file already exists",
	InvalidArgs:        "invalid arguments",
	SentenceLocked:     "sentence locked",
	SentenceOutOfRange: "sentence index out of range",
	WordOutOfRange:     "word index out of range",
	SSNotAvailable:     "no storage server available",
	SSNotReachable:     "storage server not reachable",
	SSNoResponse:       "storage server did not respond",
	NotLoggedIn:        "not logged in",
	OnlyOwner:          "only owner can perform this operation",
	UnknownCommand:     "unknown command",
	SystemError:        "internal error",
	FolderNotEmpty:     "folder not empty",
	NotLocked:          "not locked by this session",
}

// DFSError is the error type carried through NM/SS command handling; its
// Error() text is exactly what follows "ERR " on the wire.
type DFSError struct {
	Code    Code
	Message string
}

func (e *DFSError) Error() string { return e.Message }

// New builds a DFSError with the taxonomy's default message for code.
func New(code Code) *DFSError {
	return &DFSError{Code: code, Message: defaultMessages[code]}
}

// Newf builds a DFSError with a custom formatted message, still tagged
// with its taxonomy code for callers that branch on Code.
func Newf(code Code, format string, args ...any) *DFSError {
	return &DFSError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WireLine renders the single-line ERR reply for this error.
func (e *DFSError) WireLine() string {
	return "ERR " + e.Message
}

// Is reports whether err is a *DFSError with the given code.
func Is(err error, code Code) bool {
	de, ok := err.(*DFSError)
	return ok && de.Code == code
}
