// Package authapi exposes the credential and session lifecycle over HTTP.
//
// It owns transport concerns only: JSON decoding, status-code mapping,
// bearer-token extraction, and login throttling. All trust decisions are
// delegated to the session service.
package authapi
