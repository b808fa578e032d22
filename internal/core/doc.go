// Package core provides the business logic for bulk importing process records
// from CSV files.
//
// This package has no transport or UI dependencies. The web server, the
// terminal front-end and the importctl CLI all drive the same [Wizard].
//
// # Pipeline
//
// A file moves through the following stages:
//
//  1. [ParseFile] turns the raw upload into headers and rows, or a [*FormatError]
//  2. [SchemaValidator] checks the header set and every score cell, accumulating
//     all problems into a [ValidationReport]
//  3. The [Wizard] holds rows and report in an [ImportSession] and gates step
//     transitions on the report
//  4. On StartImport the wizard hands the rows to a [Gateway], which issues one
//     create per row against a [RecordStore] and aggregates an [ImportOutcome]
//  5. The terminal step is announced through a [NotificationEmitter]
//
// # Steps
//
// The wizard is an explicit state machine:
//
//	SelectFile -> Preview -> Importing -> Success
//	                  |            \-> Failed
//	                  \-> SelectFile (Back)
//
// Every non-closed step may transition to Closed. Disallowed transitions
// return a [*TransitionError] and leave the session untouched.
//
// # Persistence
//
// Imports are not transactional. Rows created before a later failure stay
// created. A transport failure (see [IsTransportError]) stops dispatch and
// drives the wizard to Failed; any other error only fails its own row.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code for support reference:
//
//   - FILE001-FILE005: File errors (size, format, empty)
//   - VAL003-VAL008: Validation errors (missing columns, score ranges)
//   - NET001, DB001-DB006: Record store errors
//   - IMP001-IMP005: Import errors (cancelled, busy, timeout)
//   - WIZ001-WIZ002: Wizard errors (invalid step, unknown session)
package core
