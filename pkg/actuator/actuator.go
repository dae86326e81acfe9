// Package actuator drives the physical lock servo.
//
// The device speaks a single parameterized command: a servo angle
// posted over HTTP. There is no acknowledgment protocol; success is
// assumed unless the call itself errors, and errors are logged by the
// caller rather than retried.
package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/latchwork/gatekeeper/internal/httpc"
)

// Servo angles for the two lock positions.
const (
	OpenAngle   = 90
	ClosedAngle = 0
)

// command is the wire payload for one servo move.
type command struct {
	Angle int `json:"angle"`
}

// Servo is a best-effort client for the lock hardware.
type Servo struct {
	url    string
	client *http.Client
}

// NewServo creates a servo client targeting the device endpoint.
func NewServo(url string) *Servo {
	return &Servo{url: url, client: httpc.Client}
}

// Unlock drives the servo to the open position.
func (s *Servo) Unlock(ctx context.Context) error {
	return s.send(ctx, OpenAngle)
}

// Lock drives the servo to the closed position.
func (s *Servo) Lock(ctx context.Context) error {
	return s.send(ctx, ClosedAngle)
}

func (s *Servo) send(ctx context.Context, angle int) error {
	body, err := json.Marshal(command{Angle: angle})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build servo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("servo command: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("servo command: unexpected status %d", resp.StatusCode)
	}
	return nil
}
