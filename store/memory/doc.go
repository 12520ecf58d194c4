// Package memory provides process-local implementations of the relay stores.
// They back the service when no persistence client is configured and in tests.
package memory
