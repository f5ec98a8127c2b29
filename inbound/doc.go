// Package inbound exposes the webhook HTTP surface.
//
// Requests are checked for the svix headers before the body is read, then
// handed to a webhooks.Processor with the raw body bytes intact so the
// signature can be verified over exactly what was sent.
package inbound
