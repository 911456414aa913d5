// Package protocol defines the JSON wire format spoken over the daemon's
// Unix socket.
//
// Every exchange is a single newline-delimited [Envelope] in each
// direction: the client sends a command with a typed payload, the server
// answers with ok or error. Failures carry an [ErrorResult] whose kind and
// location fields let clients distinguish graph failures from
// configuration failures without parsing messages.
package protocol
