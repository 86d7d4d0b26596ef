package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errNoProviders = errors.New("no token decryption configured")
	errUnsolved    = errors.New("token left unsolved")
)

// Failure records one entry of a playlist that could not be resolved.
type Failure struct {
	Reference string
	Extractor string
	// Chain lists the playlists the entry was found in, outermost first.
	Chain []string
	Err   error
}

func (f Failure) Error() string {
	var sb strings.Builder
	if len(f.Chain) > 0 {
		sb.WriteString(strings.Join(f.Chain, " > ") + " > ")
	}
	if f.Reference != "" {
		sb.WriteString(f.Reference + ": ")
	}
	if f.Err != nil {
		sb.WriteString(f.Err.Error())
	} else {
		sb.WriteString("failed")
	}
	return sb.String()
}

func (f Failure) Unwrap() error {
	return f.Err
}

// AllEntriesFailedError is returned when a playlist produced no entry at
// all because every one of them failed.
type AllEntriesFailedError struct {
	Failures []Failure
}

func (e *AllEntriesFailedError) Error() string {
	if len(e.Failures) == 0 {
		return "all entries failed"
	}
	return fmt.Sprintf("all entries failed: %d failure(s), first: %v", len(e.Failures), e.Failures[0])
}

// Unwrap exposes the first failure so errors.Is sees its cause.
func (e *AllEntriesFailedError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[0].Err
}
