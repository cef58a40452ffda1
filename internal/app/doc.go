// Package app provides the application service layer.
//
// Service orchestrates every use case: registration and login, suggestion
// lifecycle, and vote casting. Each mutation is persisted first, the
// canonical state is then re-read, and only then is an event published.
// Sits between the HTTP/websocket adapters and the domain repositories.
package app
