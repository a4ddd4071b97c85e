package pathsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// ErrorKind names the operation that failed.
type ErrorKind int

const (
	ScanError ErrorKind = iota
	MetadataError
	CopyError
	MoveError
	DeleteError
	DirectoryCreateError
	DirectoryDeleteError
)

var errorKindToString = map[ErrorKind]string{
	ScanError:            "scan",
	MetadataError:        "metadata",
	CopyError:            "copy",
	MoveError:            "move",
	DeleteError:          "delete",
	DirectoryCreateError: "directory-create",
	DirectoryDeleteError: "directory-delete",
}

var stringToErrorKind = util.InvertMap(errorKindToString)

func (k ErrorKind) String() string {
	if s, ok := errorKindToString[k]; ok {
		return s
	}
	return fmt.Sprintf("unknown_kind(%d)", k)
}

// ParseErrorKind is the inverse of ErrorKind.String.
func ParseErrorKind(s string) (ErrorKind, error) {
	if k, ok := stringToErrorKind[s]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("invalid error kind: %q", s)
}

// MarshalJSON implements the json.Marshaler interface.
func (k ErrorKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (k *ErrorKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("error kind should be a string, got %s", data)
	}
	kind, err := ParseErrorKind(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// Reason is the coarse cause behind a failed filesystem operation.
type Reason int

const (
	ReasonOther Reason = iota
	ReasonNotFound
	ReasonPermission
	ReasonCrossDevice
	ReasonDiskFull
)

var reasonToString = map[Reason]string{
	ReasonOther:       "other",
	ReasonNotFound:    "not-found",
	ReasonPermission:  "permission-denied",
	ReasonCrossDevice: "cross-device",
	ReasonDiskFull:    "disk-full",
}

func (r Reason) String() string {
	if s, ok := reasonToString[r]; ok {
		return s
	}
	return fmt.Sprintf("unknown_reason(%d)", r)
}

var stringToReason = util.InvertMap(reasonToString)

// ParseReason converts a string into a Reason.
func ParseReason(s string) (Reason, error) {
	if r, ok := stringToReason[s]; ok {
		return r, nil
	}
	return ReasonOther, fmt.Errorf("invalid reason: %q", s)
}

// MarshalJSON implements the json.Marshaler interface.
func (r Reason) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (r *Reason) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("reason should be a string, got %s", data)
	}
	reason, err := ParseReason(s)
	if err != nil {
		return err
	}
	*r = reason
	return nil
}

// ClassifyReason maps err onto a Reason.
func ClassifyReason(err error) Reason {
	switch {
	case err == nil:
		return ReasonOther
	case errors.Is(err, fs.ErrNotExist):
		return ReasonNotFound
	case errors.Is(err, fs.ErrPermission):
		return ReasonPermission
	case isCrossDevice(err):
		return ReasonCrossDevice
	case isDiskFull(err):
		return ReasonDiskFull
	default:
		return ReasonOther
	}
}

// ErrorRecord describes one failed operation. Records never cross component
// boundaries as returned errors; they are collected in the run's ErrorLog.
type ErrorRecord struct {
	Kind   ErrorKind
	Path   string
	Err    error
	Reason Reason
	Time   time.Time
}

func (e ErrorRecord) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e ErrorRecord) Unwrap() error {
	return e.Err
}

type errorRecordJSON struct {
	Kind    ErrorKind `json:"kind"`
	Path    string    `json:"path"`
	Reason  Reason    `json:"reason"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// MarshalJSON renders the wrapped error as its message.
func (e ErrorRecord) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(errorRecordJSON{e.Kind, e.Path, e.Reason, msg, e.Time})
}

// UnmarshalJSON restores a record written by MarshalJSON. The wrapped error
// only keeps its message.
func (e *ErrorRecord) UnmarshalJSON(data []byte) error {
	var raw errorRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = ErrorRecord{Kind: raw.Kind, Path: raw.Path, Reason: raw.Reason, Time: raw.Time}
	if raw.Message != "" {
		e.Err = errors.New(raw.Message)
	}
	return nil
}

// ErrorLog is an append-only list of ErrorRecords, safe for concurrent
// appends and reads. Records from one goroutine keep their insertion order.
type ErrorLog struct {
	mu      sync.RWMutex
	records []ErrorRecord
}

// Add classifies err, appends a record and logs it as a warning.
func (l *ErrorLog) Add(kind ErrorKind, path string, err error) ErrorRecord {
	rec := ErrorRecord{
		Kind:   kind,
		Path:   path,
		Err:    err,
		Reason: ClassifyReason(err),
		Time:   time.Now(),
	}
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()

	plog.Warn("Operation failed", "kind", kind, "path", path, "reason", rec.Reason, "error", err)
	return rec
}

// Records returns a copy of all records appended so far.
func (l *ErrorLog) Records() []ErrorRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ErrorRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *ErrorLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// CountKind returns the number of records of the given kind.
func (l *ErrorLog) CountKind(kind ErrorKind) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, rec := range l.records {
		if rec.Kind == kind {
			n++
		}
	}
	return n
}
