// Package http contains the chi HTTP handlers: report generation and
// lifecycle, template and reading management, exports and health probes.
// Errors are rendered as RFC 7807 problem details.
package http
