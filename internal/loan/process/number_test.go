// internal/loan/process/number_test.go
package process

import (
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplicationNumber_Format(t *testing.T) {
	// 2026-03-15 14:30:45 UTC: day 74, 14*3600+30*60+45 = 52245 seconds.
	at := time.Date(2026, 3, 15, 14, 30, 45, 0, time.UTC)

	assert.Equal(t, "HBF-2026-074-52245", ApplicationNumber(at))
}

func TestApplicationNumber_Midnight(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "HBF-2026-001-00000", ApplicationNumber(at))
}

func TestApplicationNumber_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	local := time.Date(2026, 3, 15, 9, 30, 45, 0, loc)
	utc := time.Date(2026, 3, 15, 14, 30, 45, 0, time.UTC)

	assert.Equal(t, ApplicationNumber(utc), ApplicationNumber(local))
}

func TestApplicationNumber_SameSecondCollides(t *testing.T) {
	at := time.Date(2026, 6, 1, 10, 0, 0, 100, time.UTC)
	later := at.Add(500 * time.Millisecond)

	assert.Equal(t, ApplicationNumber(at), ApplicationNumber(later))
}

func TestWithCollisionSuffix(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	number := WithCollisionSuffix("HBF-2026-074-52245", rnd)

	assert.Regexp(t, regexp.MustCompile(`^HBF-2026-074-52245-[0-9a-f]{4}$`), number)
}
