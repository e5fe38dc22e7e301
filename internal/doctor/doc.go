// Package doctor provides diagnostic and repair functionality for the
// orgcmp cache and retrieval workspace.
//
// The doctor package detects and optionally repairs:
//
//   - CLI issues: the configured retrieval CLI is not on PATH.
//
//   - Cache integrity issues: index entries whose tree or metadata blob is
//     missing or undecodable, or whose file count disagrees with the blob.
//     Reads heal these silently; doctor reports them instead.
//
//   - Orphan issues: blob files without an index entry, left behind when a
//     write is interrupted before the index update.
//
//   - Stale issues: cache entries and staging directories of orgs that are
//     no longer registered.
//
// # Usage
//
//	report, err := doctor.Run(ctx, opts, false) // check only
//	report, err := doctor.Run(ctx, opts, true)  // check and fix
//
// Each [Issue] includes a description and the action --fix would take.
// CLI issues have no automatic fix.
package doctor
