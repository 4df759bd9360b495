// Package cli builds the command tree, binds flags to configuration and
// environment settings, validates user input, and handles process-level
// concerns like exit codes. It translates each command into a call on the
// application layer.
package cli
