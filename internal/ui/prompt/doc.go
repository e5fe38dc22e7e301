// Package prompt provides the interactive prompts of orgcmp. Both draw on
// stderr and are only used when stdin and stderr are terminals.
//
//   - [Confirm]: yes/no question listing what it affects, used by "cache clear"
//   - [Pick]: filterable list, used when a file query matches several files
package prompt
