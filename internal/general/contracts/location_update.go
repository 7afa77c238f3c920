package contracts

import "time"

// LocationUpdateMessage is broadcast by the driver agent on every successful flush.
// Exchange: ExchangeLocationFanout (fanout, no routing key).
type LocationUpdateMessage struct {
	DriverID   string    `json:"driver_id"`
	Location   GeoPoint  `json:"location"`
	AccuracyM  *float64  `json:"accuracy_m,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
	Envelope
}
