// Package app contains the core application logic. It defines the main App
// struct, its invocation model, and the primary execution lifecycle,
// decoupled from any specific entrypoint like a CLI.
package app
