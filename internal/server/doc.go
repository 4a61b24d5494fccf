// Package server exposes the HTTP surface: the public voting and
// status endpoints, the password-protected admin API, the display
// WebSocket, and the health and metrics endpoints.
package server
