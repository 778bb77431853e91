// Package migrations holds the versioned schema for the normalized VT
// tables, applied with goose via the tallysync migrate command.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
