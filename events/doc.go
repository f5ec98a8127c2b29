// Package events decodes identity provider webhook envelopes into a closed
// set of typed variants.
//
// Only user.created carries a dedicated variant. Every other type decodes to
// Unhandled so callers can acknowledge it without side effects.
package events
