// Package wire defines the WebSocket message types exchanged between
// devices, the controller, and dashboard observers.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/latchwork/gatekeeper/pkg/sensor"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Device → controller / controller → observers
	TypeSensorData MessageType = "sensor-data"

	// Controller → observers, out of band
	TypeTheftAlert MessageType = "theft-alert"
	TypeGhostAlert MessageType = "ghost-mode-alert"
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// SensorData relays one sample verbatim to observers. Absent gyroscope
// fields on the inbound side default to zero; observers treat an
// all-zero gyroscope as "no gyroscope data".
type SensorData struct {
	Accelerometer sensor.Vector3 `json:"accelerometer"`
	Gyroscope     sensor.Vector3 `json:"gyroscope"`
	Timestamp     int64          `json:"timestamp"`
}

// Sample converts the wire payload to the internal sample type.
func (d SensorData) Sample() sensor.Sample {
	return sensor.Sample{
		Accelerometer: d.Accelerometer,
		Gyroscope:     d.Gyroscope,
		Timestamp:     d.Timestamp,
	}
}

// TheftAlert warns observers of a theft-level acceleration spike.
type TheftAlert struct {
	Magnitude float64 `json:"magnitude"`
	Timestamp int64   `json:"timestamp"`
}

// GhostAlert warns observers of near-total stillness that suggests
// sensor tampering or disconnection.
type GhostAlert struct {
	Timestamp int64 `json:"timestamp"`
}
