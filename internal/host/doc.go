// Package host binds the teardown event to the running process.
package host
