// Package webhooks verifies Svix-signed deliveries and dispatches them.
//
// When a DeliveryLedger is configured, deliveries follow the claim lifecycle
// retry_ready -> processing -> processed, keyed by svix-id. A processed
// delivery is acknowledged without dispatch; one still leased is rejected
// with 409 so the sender retries it later.
package webhooks
