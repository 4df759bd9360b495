// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the operations behind each CLI command,
// decoupled from flag parsing and process-level concerns.
package app
