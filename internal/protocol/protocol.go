package protocol

import (
	"encoding/json"
	"fmt"
)

// A command carried by a protocol envelope.
type Command string

const (
	// Client commands.
	CmdBuild    Command = "build"
	CmdLaunch   Command = "launch"
	CmdStatus   Command = "status"
	CmdShutdown Command = "shutdown"

	// Server responses.
	CmdOK    Command = "ok"
	CmdError Command = "error"
)

// The outer JSON message exchanged over the daemon socket.
//
// Every exchange is one newline-delimited envelope in each direction. The
// payload shape is determined by the command.
type Envelope struct {
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Serializes a command and payload into an envelope.
func Encode(cmd Command, payload any) ([]byte, error) {
	env := Envelope{Command: cmd}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		env.Payload = data
	}

	return json.Marshal(env)
}

// Parses an envelope, returning it together with the raw payload.
func Decode(data []byte) (*Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Command == "" {
		return nil, nil, fmt.Errorf("envelope has no command")
	}
	return &env, env.Payload, nil
}

// Parses a payload into the given request or result type.
func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	var v T
	if len(payload) == 0 {
		return &v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &v, nil
}
