//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// TimeLayoutConstants detects magic date/time layout strings that have
// named equivalents in the time package.
//
// Old pattern:
//
//	t.Format("2006-01-02")
//	t.Format("2006-01-02 15:04:05")
//
// New pattern (Go 1.20+):
//
//	t.Format(time.DateOnly)
//	t.Format(time.DateTime)
//
// See: https://pkg.go.dev/time#pkg-constants
func TimeLayoutConstants(m dsl.Matcher) {
	m.Match(
		`$t.Format("2006-01-02")`,
	).
		Report(`use $t.Format(time.DateOnly) instead of a magic layout string (Go 1.20+)`).
		Suggest(`$t.Format(time.DateOnly)`)

	m.Match(
		`time.Parse("2006-01-02", $s)`,
	).
		Report(`use time.Parse(time.DateOnly, $s) instead of a magic layout string (Go 1.20+)`).
		Suggest(`time.Parse(time.DateOnly, $s)`)

	m.Match(
		`$t.Format("2006-01-02 15:04:05")`,
	).
		Report(`use $t.Format(time.DateTime) instead of a magic layout string (Go 1.20+)`).
		Suggest(`$t.Format(time.DateTime)`)

	m.Match(
		`time.Parse("2006-01-02 15:04:05", $s)`,
	).
		Report(`use time.Parse(time.DateTime, $s) instead of a magic layout string (Go 1.20+)`).
		Suggest(`time.Parse(time.DateTime, $s)`)
}

// DeferredTimeSince detects deferred calls that pass time.Since directly,
// which measures at defer time rather than at function exit.
//
// Broken pattern:
//
//	start := time.Now()
//	defer log.Println(time.Since(start))  // always ~0
//
// Correct pattern:
//
//	defer func() { log.Println(time.Since(start)) }()
//
// See: https://pkg.go.dev/time#Since
func DeferredTimeSince(m dsl.Matcher) {
	m.Match(
		`defer $fn(time.Since($start))`,
		`defer $fn(time.Since($start), $*args)`,
		`defer $fn($arg, time.Since($start))`,
	).
		Report("time.Since($start) is evaluated at defer time, not function exit; wrap in func() to measure the full duration")
}
