// Package idgen generates identifiers for scan runs, page results and
// ledger rows.
//
// Constructors that persist or report records accept a Generator so tests
// can pin IDs while production uses time-sortable UUIDv7 values.
package idgen

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 version 7 UUID strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID of gen ("scan_", "fix_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Timestamped returns IDs of the form "20060102T150405Z_<suffix>".
func Timestamped(gen Generator) Generator {
	return func() string {
		return time.Now().UTC().Format("20060102T150405Z") + "_" + gen()
	}
}

// Sequence returns a Generator of prefix-1, prefix-2, ... for tests and
// reproducible output.
func Sequence(prefix string) Generator {
	n := 0
	return func() string {
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using Default.
func New() string {
	return Default()
}

// RunID identifies one scan or fix run.
func RunID() string {
	return "scan_" + Default()
}

// Child is the ID of the i-th record of a run: the run ID itself for the
// first record, "<run>-<i>" after it.
func Child(run string, i int) string {
	if i == 0 {
		return run
	}
	return run + "-" + strconv.Itoa(i)
}

// Parse validates a UUID string.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid UUID: %w", err)
	}
	return u.String(), nil
}
