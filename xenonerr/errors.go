// Package xenonerr defines the error taxonomy shared by every xenon
// adaptor: Scheduler back-ends, FileSystem back-ends, and the core
// engines (job executor, job-queue scheduler, copy engine) all surface
// failures as a *xenonerr.Error carrying one of the Kind values below.
package xenonerr

import "fmt"

// Kind classifies the circumstance under which an Error was raised. Kind
// values are not Go types; they are the taxonomy of spec §7, collapsed
// into a single enum so callers can switch on one field instead of doing
// type assertions against a family of error types.
type Kind int

const (
	// Unknown is the zero value; a well-formed Error never carries it.
	Unknown Kind = iota

	// InvalidJobDescription indicates a JobDescription field has a value
	// that is well-formed but not permitted (e.g. tasks != 1).
	InvalidJobDescription
	// IncompleteJobDescription indicates a required JobDescription field
	// is missing (e.g. executable unset).
	IncompleteJobDescription
	// NoSuchQueue indicates a queue name unknown to the scheduler.
	NoSuchQueue
	// NoSuchJob indicates a job id absent from every queue.
	NoSuchJob
	// JobCancelled indicates a job reached a terminal state via cancel or
	// timeout.
	JobCancelled

	// NoSuchPath indicates a referenced path does not exist.
	NoSuchPath
	// PathAlreadyExists indicates a target exists and the requested mode
	// disallows that.
	PathAlreadyExists
	// InvalidPath indicates an operation was attempted against a path of
	// the wrong kind (e.g. a regular file where a directory is required).
	InvalidPath
	// DirectoryNotEmpty indicates a non-recursive delete was attempted on
	// a populated directory.
	DirectoryNotEmpty
	// PermissionDenied indicates the back-end denied the operation.
	PermissionDenied
	// EndOfFile indicates a stream ended prematurely.
	EndOfFile
	// NoSpace indicates no space or quota was available to satisfy the
	// operation.
	NoSpace
	// NotConnected indicates the transport has been closed or lost.
	NotConnected

	// CopyCancelled indicates a copy was aborted via cancel or
	// interruption.
	CopyCancelled
	// NoSuchCopy indicates a copy id is unknown, or has already been
	// harvested by a prior terminal observation.
	NoSuchCopy

	// BadParameter indicates a malformed configuration-time argument.
	BadParameter
	// UnknownProperty indicates a properties map key the adaptor does not
	// recognize.
	UnknownProperty
	// InvalidProperty indicates a properties map value that failed to
	// parse or is out of range.
	InvalidProperty
	// UnknownAdaptor indicates a requested adaptor name has no
	// registration.
	UnknownAdaptor
	// InvalidLocation indicates a location string the adaptor could not
	// parse or connect to.
	InvalidLocation
	// InvalidCredential indicates a credential object unsuited to the
	// requested adaptor.
	InvalidCredential

	// UnsupportedOperation indicates an optional operation the back-end
	// does not provide.
	UnsupportedOperation
)

var kindNames = map[Kind]string{
	Unknown:                  "unknown",
	InvalidJobDescription:    "invalid job description",
	IncompleteJobDescription: "incomplete job description",
	NoSuchQueue:              "no such queue",
	NoSuchJob:                "no such job",
	JobCancelled:             "job cancelled",
	NoSuchPath:               "no such path",
	PathAlreadyExists:        "path already exists",
	InvalidPath:              "invalid path",
	DirectoryNotEmpty:        "directory not empty",
	PermissionDenied:         "permission denied",
	EndOfFile:                "end of file",
	NoSpace:                  "no space",
	NotConnected:             "not connected",
	CopyCancelled:            "copy cancelled",
	NoSuchCopy:               "no such copy",
	BadParameter:             "bad parameter",
	UnknownProperty:          "unknown property",
	InvalidProperty:          "invalid property",
	UnknownAdaptor:           "unknown adaptor",
	InvalidLocation:          "invalid location",
	InvalidCredential:        "invalid credential",
	UnsupportedOperation:     "unsupported operation",
}

// String renders a Kind's taxonomy name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is the concrete error type raised across xenon's adaptors and
// core engines. It carries the adaptor that raised it, a Kind from the
// taxonomy, a human message, and an optional wrapped cause.
type Error struct {
	AdaptorName string
	Kind        Kind
	Message     string
	Cause       error
}

// New creates an Error with no wrapped cause.
func New(adaptorName string, kind Kind, message string) *Error {
	return &Error{AdaptorName: adaptorName, Kind: kind, Message: message}
}

// Wrap creates an Error wrapping cause. If cause is nil, Wrap returns nil.
func Wrap(adaptorName string, kind Kind, message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{AdaptorName: adaptorName, Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s [%s]: %v", e.AdaptorName, e.Message, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s [%s]", e.AdaptorName, e.Message, e.Kind)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, which lets
// callers write `errors.Is(err, xenonerr.New("", xenonerr.NoSuchJob, ""))`
// or, more idiomatically, compare via a Kind sentinel helper such as
// IsKind below.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// IsKind reports whether err is (or wraps) a *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
