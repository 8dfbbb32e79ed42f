// internal/loan/process/number.go
package process

import (
	"fmt"
	"math/rand"
	"time"
)

// ApplicationNumber derives the human-facing application number from the
// submission instant: HBF-{year}-{day of year}-{seconds since midnight UTC}.
// Two submissions in the same UTC second collide; the database unique
// constraint catches that and the processor retries with a suffix.
func ApplicationNumber(t time.Time) string {
	t = t.UTC()
	secondsSinceMidnight := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return fmt.Sprintf("HBF-%d-%03d-%05d", t.Year(), t.YearDay(), secondsSinceMidnight)
}

// WithCollisionSuffix appends a random 4-hex-digit suffix for retry after a
// unique constraint violation.
func WithCollisionSuffix(number string, rnd *rand.Rand) string {
	return fmt.Sprintf("%s-%04x", number, rnd.Intn(0x10000))
}
