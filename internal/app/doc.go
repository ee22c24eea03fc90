// Package app contains the core application logic. It wires configuration
// into the build collaborators (descriptor loader, fetcher, cache, event
// publisher, status server) and runs the orchestrator, decoupled from any
// specific entrypoint like a CLI.
package app
