//go:build ruleguard

// Package gorules defines custom linter rules enforced via ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// TestingContext detects context.Background() or context.TODO() in test
// functions and suggests t.Context() instead.
//
// Old pattern:
//
//	ctx := context.Background()
//
// New pattern (Go 1.24+):
//
//	ctx := t.Context()
//
// The test context is canceled when the test finishes, so goroutines
// holding it wind down without extra plumbing.
//
// See: https://pkg.go.dev/testing#T.Context
func TestingContext(m dsl.Matcher) {
	m.Match(
		`$ctx := context.Background()`,
		`$ctx = context.Background()`,
		`$ctx := context.TODO()`,
		`$ctx = context.TODO()`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("in tests, use t.Context() for automatic cancellation on test completion (Go 1.24+)")

	m.Match(
		`$fn(context.Background(), $*args)`,
		`$fn(context.TODO(), $*args)`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("in tests, use t.Context() instead of context.Background() (Go 1.24+)")
}

// TestSleep detects time.Sleep in test files.
//
// Sleeping makes a test slow when the wait is long enough and flaky when
// it is not. Poll with require.Eventually or drive time with a clockwork
// fake clock instead.
//
// See: https://pkg.go.dev/github.com/stretchr/testify/require#Eventually
// See: https://pkg.go.dev/github.com/jonboulle/clockwork
func TestSleep(m dsl.Matcher) {
	m.Match(
		`time.Sleep($d)`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("avoid time.Sleep in tests; poll with require.Eventually or use a clockwork fake clock")
}
