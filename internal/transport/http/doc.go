// Package http contains the HTTP handlers for the decode API. Handlers
// translate transport concerns (multipart parsing, content negotiation,
// RFC 7807 errors) and delegate all pipeline work to the services layer.
package http
