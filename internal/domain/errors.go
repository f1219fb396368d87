package domain

import "fmt"

// The pipeline distinguishes five failure classes so the CLI can exit with a
// stable code per class and callers can branch with errors.As.

// ConfigError is a bad invocation or configuration: unknown region,
// out-of-range month, missing DSN. Reported before any I/O.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

// Configf builds a ConfigError.
func Configf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// DownloadError is a terminal acquisition failure after the retry budget is
// exhausted.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// AssetError is a grid file that cannot be used: a cached or freshly
// downloaded asset failing the size/header validity check, or a file that
// fails to decode. Exactly one of Reason and Err is set.
type AssetError struct {
	Path   string
	Reason string
	Err    error
}

func (e *AssetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("asset %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("asset %s: %s", e.Path, e.Reason)
}

func (e *AssetError) Unwrap() error { return e.Err }

// SchemaError is a standardized row set violating the declared table shape:
// a required column is absent or holds nulls. A single bad row invalidates
// the whole batch.
type SchemaError struct {
	Label   string
	Missing []string // absent required columns, if any
	Sample  []Row    // up to 10 rows with nulls in required fields
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: missing columns %v", e.Label, e.Missing)
	}
	return fmt.Sprintf("%s: nulls in required fields (%d sample rows)", e.Label, len(e.Sample))
}

// SinkError wraps a warehouse write or delete failure. The pipeline does not
// retry these; the caller decides.
type SinkError struct {
	Op  string // "append" or "delete"
	Err error
}

func (e *SinkError) Error() string { return fmt.Sprintf("sink %s: %v", e.Op, e.Err) }

func (e *SinkError) Unwrap() error { return e.Err }
