// Package testutil offers fluent builders for sessions and events so tests
// can assemble conversation fixtures without repeating struct literals. Test
// support only, never imported by production code.
package testutil
