// Package internal contains the implementation packages for contactform.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - form: field set, form data, error map and the observable form state
//   - validation: per-field rules and endpoint URL checks
//   - submit: the validate-then-send controller with its single-flight guard
//   - config: Viper-backed configuration with validation
//   - errors: typed errors and the shared error handler
//   - logging: structured logging on log/slog
//   - metrics: Prometheus collectors for submits and websocket clients
//   - server: HTTP preview of the form with a JSON API
//   - websocket: hub that streams form state changes to browsers
//   - watcher: debounced file watching used to reload the config file
//   - version: build metadata
//
// # Inter-Package Communication
//
// Data flows in one direction:
//
//   - form.State is the single source of truth and notifies subscribers
//   - submit.Controller reads values from the state and writes errors,
//     status and the sending flag back to it
//   - server subscribes to the state and forwards every event to the
//     websocket hub
//   - watcher reports config file writes and server swaps the endpoint of
//     the running controller
//
// The cmd package wires these together for the submit, validate,
// interactive and serve commands.
package internal
