// Package protocol defines the messages exchanged between the background
// context and page contexts, and the analysis payloads they carry.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Action identifies what a message asks its receiver to do.
type Action string

const (
	ActionPing        Action = "ping"
	ActionShowLoading Action = "showLoading"
	ActionShowResults Action = "showResults"
	ActionShowError   Action = "showError"
	ActionClosePopup  Action = "closePopup"
)

// Message is the unit sent across the router. Only the fields relevant to
// Action are populated.
type Message struct {
	Action       Action          `json:"action"`
	SelectedText string          `json:"selectedText,omitempty"`
	Data         *AnalysisResult `json:"data,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Ping builds the zero-payload liveness probe.
func Ping() Message { return Message{Action: ActionPing} }

// ShowLoading asks the page to open the overlay in its loading state.
func ShowLoading(selectedText string) Message {
	return Message{Action: ActionShowLoading, SelectedText: selectedText}
}

// ShowResults delivers a finished analysis.
func ShowResults(result AnalysisResult, selectedText string) Message {
	return Message{Action: ActionShowResults, Data: &result, SelectedText: selectedText}
}

// ShowError delivers a user-facing failure message.
func ShowError(msg string) Message {
	return Message{Action: ActionShowError, Error: msg}
}

// ClosePopup asks the receiver to dismiss its overlay.
func ClosePopup() Message { return Message{Action: ActionClosePopup} }

// Reply is the response every handled message produces.
type Reply struct {
	Success bool   `json:"success"`
	Ready   bool   `json:"ready,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ack is the plain success reply.
func Ack() Reply { return Reply{Success: true} }

// ReadyReply answers a ping.
func ReadyReply() Reply { return Reply{Success: true, Ready: true} }

// Failure is a structured "understood but could not handle" reply.
func Failure(err error) Reply {
	return Reply{Success: false, Error: err.Error()}
}

// Encode serializes a message for transport.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", m.Action, err)
	}
	return data, nil
}

// Decode parses a transported message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	return m, nil
}
