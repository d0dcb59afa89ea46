// Package http contains the HTTP handlers for the equipment dataset
// API. Handlers depend on service interfaces so tests can substitute
// fakes, and delegate error responses to the shared error handler.
package http
