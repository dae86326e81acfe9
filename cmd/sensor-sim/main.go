// sensor-sim replays synthetic IMU streams against a running
// controller, for exercising the dashboard and anomaly detectors
// without physical hardware.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/latchwork/gatekeeper/pkg/sensor"
	"github.com/latchwork/gatekeeper/pkg/wire"
)

// scenario produces the i-th sample of a synthetic stream.
type scenario func(i int) sensor.Sample

// steady is a safe at rest: gravity on Z plus sensor noise.
func steady(i int) sensor.Sample {
	return sensor.Sample{
		Accelerometer: sensor.Vector3{
			X: noise(0.2),
			Y: noise(0.2),
			Z: 9.8 + noise(0.2),
		},
		Gyroscope: sensor.Vector3{X: noise(0.05), Y: noise(0.05), Z: noise(0.05)},
	}
}

var scenarios = map[string]scenario{
	"steady": steady,

	// Someone nudging the safe: bursts above the movement threshold.
	"movement": func(i int) sensor.Sample {
		s := steady(i)
		if i%20 < 3 {
			s.Accelerometer.X = 8 + noise(1)
			s.Gyroscope.Z = 3 + noise(0.5)
		}
		return s
	},

	// A single violent spike, then quiet.
	"theft": func(i int) sensor.Sample {
		if i == 10 {
			return sensor.Sample{
				Accelerometer: sensor.Vector3{X: 40, Y: 30, Z: 25},
				Gyroscope:     sensor.Vector3{X: 5, Y: 5, Z: 5},
			}
		}
		return steady(i)
	},

	// Implausible total stillness, as if the sensor were unplugged.
	"ghost": func(i int) sensor.Sample {
		return sensor.Sample{}
	},

	// Gentle periodic sway, stays under every threshold.
	"sway": func(i int) sensor.Sample {
		t := float64(i) / 10
		return sensor.Sample{
			Accelerometer: sensor.Vector3{
				X: 2 * math.Sin(t),
				Y: 2 * math.Cos(t),
				Z: 9.8,
			},
			Gyroscope: sensor.Vector3{Z: 0.5 * math.Sin(t)},
		}
	},
}

func noise(scale float64) float64 {
	return (rand.Float64()*2 - 1) * scale
}

func main() {
	url := flag.String("url", "ws://localhost:8080/ws/sensor", "Controller sensor endpoint")
	name := flag.String("scenario", "steady", "Stream to replay: steady, movement, theft, ghost, sway")
	interval := flag.Duration("interval", 100*time.Millisecond, "Delay between samples")
	count := flag.Int("count", 0, "Number of samples to send (0 = until interrupted)")
	flag.Parse()

	gen, ok := scenarios[*name]
	if !ok {
		log.Fatalf("unknown scenario %q", *name)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.Fatalf("connect to %s: %v", *url, err)
	}
	defer conn.Close()

	fmt.Printf("Streaming %q to %s every %s\n", *name, *url, *interval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for i := 0; *count == 0 || i < *count; i++ {
		select {
		case <-sigChan:
			fmt.Println("\nInterrupted")
			return
		case <-ticker.C:
		}

		s := gen(i)
		msg, err := wire.NewMessage(wire.TypeSensorData, wire.SensorData{
			Accelerometer: s.Accelerometer,
			Gyroscope:     s.Gyroscope,
			Timestamp:     time.Now().UnixMilli(),
		})
		if err != nil {
			log.Fatalf("encode sample: %v", err)
		}
		data, err := msg.Bytes()
		if err != nil {
			log.Fatalf("encode sample: %v", err)
		}

		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Fatalf("send sample: %v", err)
		}
	}

	fmt.Println("Done")
}
