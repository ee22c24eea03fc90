package extract

import "fmt"

// UnsupportedExtractionError is returned for a method outside the closed set.
type UnsupportedExtractionError struct {
	Method string
}

func (e *UnsupportedExtractionError) Error() string {
	return fmt.Sprintf("unsupported extraction method %q", e.Method)
}

func (e *UnsupportedExtractionError) Kind() string { return "UnsupportedExtractionError" }

// ExtractionError is returned when an archive is corrupt or unsafe.
type ExtractionError struct {
	Method Method
	Entry  string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("extract %s entry %q: %v", e.Method, e.Entry, e.Err)
	}
	return fmt.Sprintf("extract %s: %v", e.Method, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Kind() string { return "ExtractionError" }
