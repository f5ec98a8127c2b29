// Package usersync mirrors provider user events into the local user store.
//
// Only user.created has a side effect: one CreateUser call with the first
// email address, the provider id as external id, the trimmed display name
// and the avatar url. Every other event type is acknowledged untouched.
package usersync
