package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pickup-market/internal/common/contextx"
	"pickup-market/internal/domain/geo"
	"pickup-market/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessagePublisher is the part of Client the location mirror needs.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, exchange, routingKey string, body []byte) error
}

// LocationPublisher mirrors flushed driver positions onto the location fanout so seller
// agents can follow a confirmed driver without polling.
type LocationPublisher struct {
	publisher MessagePublisher
	driverID  string
	now       func() time.Time
}

// NewLocationPublisher constructs a LocationPublisher for one driver.
func NewLocationPublisher(publisher MessagePublisher, driverID string) *LocationPublisher {
	return &LocationPublisher{publisher: publisher, driverID: driverID, now: time.Now}
}

// Name identifies the mirror in logs and metrics.
func (lp *LocationPublisher) Name() string { return "rabbitmq" }

// PushPosition publishes pos to the fanout exchange.
func (lp *LocationPublisher) PushPosition(ctx context.Context, pos geo.Position) error {
	msg := contracts.LocationUpdateMessage{
		DriverID:   lp.driverID,
		Location:   contracts.GeoPoint{Lat: pos.Lat, Lng: pos.Lng},
		AccuracyM:  pos.Accuracy,
		CapturedAt: pos.CapturedAt.UTC(),
		Envelope: contracts.Envelope{
			CorrelationID: contextx.GetRequestID(ctx),
			Producer:      contracts.ProducerDriverAgent,
			SentAt:        lp.now().UTC(),
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal location update: %w", err)
	}

	return lp.publisher.PublishMessage(ctx, contracts.ExchangeLocationFanout, "", body)
}

// DecodeLocationUpdate parses a fanout delivery body.
func DecodeLocationUpdate(body []byte) (contracts.LocationUpdateMessage, error) {
	var msg contracts.LocationUpdateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("decode location update: %w", err)
	}
	if msg.DriverID == "" {
		return msg, errors.New("location update without driver_id")
	}
	if err := (geo.Point{Lat: msg.Location.Lat, Lng: msg.Location.Lng}).Validate(); err != nil {
		return msg, fmt.Errorf("location update: %w", err)
	}
	return msg, nil
}

// fanoutTTL drops positions nobody consumed; the next flush supersedes them anyway.
const fanoutTTL = 30 * time.Second

// fanoutPublishing wraps a JSON body as a transient message with a short TTL.
func fanoutPublishing(body []byte) amqp.Publishing {
	return amqp.Publishing{
		DeliveryMode: amqp.Transient,
		Expiration:   strconv.FormatInt(fanoutTTL.Milliseconds(), 10),
		ContentType:  "application/json",
		Body:         body,
	}
}

// PublishMessage publishes a transient JSON message and waits for the broker confirm.
// Fanout publishes are not mandatory: nobody may be listening.
func (client *Client) PublishMessage(ctx context.Context, exchange, routingKey string, body []byte) error {
	sess := client.current()
	if !sess.usable() {
		return errors.New("rabbitmq: no open session")
	}

	client.pubMu.Lock()
	defer client.pubMu.Unlock()
	confirms := sess.confirms

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sess.pub.PublishWithContext(ctx, exchange, routingKey, false /* mandatory */, false /* immediate */, fanoutPublishing(body)); err != nil {
		return err
	}

	select {
	case c, ok := <-confirms:
		if !ok {
			return errors.New("rabbitmq: confirm stream closed")
		}
		if !c.Ack {
			return fmt.Errorf("rabbitmq: publish not acknowledged")
		}
	case <-ctx.Done():
		// keep the confirm stream aligned: try to consume exactly one confirm even if we return a timeout to the caller
		select {
		case c := <-confirms:
			if !c.Ack {
				return fmt.Errorf("rabbitmq: publish not acknowledged after timeout")
			}
		case <-time.After(2 * time.Second):
		}

		return ctx.Err()
	}

	return nil
}
