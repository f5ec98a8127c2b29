// Package publish fans out user lifecycle events to downstream consumers.
package publish
