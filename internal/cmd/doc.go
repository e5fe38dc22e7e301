// Package cmd provides helpers for executing shell commands with proper error handling.
//
// This package wraps [os/exec.Cmd] to capture stderr and include it in error
// messages, making command failures more informative for users.
//
// # Usage
//
//	out, err := cmd.OutputContext(ctx, "", "sf", "org", "list", "--json")
//	if err != nil {
//	    // err contains stderr output if available
//	    return fmt.Errorf("sf failed: %w", err)
//	}
//
// The context variants log the command line through the logger attached to
// ctx (visible with --verbose) and report context cancellation or deadline
// expiry as the wrapped error, so callers can use [errors.Is].
//
// # Design Notes
//
// orgcmp shells out to the platform CLI (sf) rather than talking to the
// remote APIs directly. The CLI already owns authentication, token refresh
// and org aliases, so orgcmp only needs the org's username.
package cmd
