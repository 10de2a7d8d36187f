package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Inserter is the direct-persistence fallback used when the broker is
// unreachable. *repository.ActivityRepo satisfies it.
type Inserter interface {
	Insert(ctx context.Context, userID uint64, action, details, ip, userAgent string, at time.Time) error
}

// Recorder publishes activity events, falling back to a direct insert.
type Recorder struct {
	URL   string
	Store Inserter
}

func NewRecorder(url string, store Inserter) *Recorder {
	return &Recorder{URL: url, Store: store}
}

// Record writes one activity event best-effort. Failures on both the
// broker and the fallback path are logged and swallowed.
func (r *Recorder) Record(ctx context.Context, userID uint64, action, details, ip, userAgent string) {
	ev := Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		IP:        ip,
		UserAgent: userAgent,
		At:        time.Now().UTC(),
	}
	if err := r.publish(ctx, ev); err == nil {
		return
	}
	if err := r.Store.Insert(ctx, ev.UserID, ev.Action, ev.Details, ev.IP, ev.UserAgent, ev.At); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("activity log write dropped")
	}
}

// FromRequest records an event with the caller's IP and user agent taken
// from the request.
func (r *Recorder) FromRequest(c echo.Context, userID uint64, action, details string) {
	r.Record(c.Request().Context(), userID, action, details,
		c.RealIP(), c.Request().Header.Get("User-Agent"))
}

// publish sends the event to the durable activity queue. Marked persistent
// so entries survive a broker restart.
func (r *Recorder) publish(ctx context.Context, ev Event) error {
	conn, err := amqp.Dial(r.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return ch.PublishWithContext(pubCtx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Body:         body,
	})
}
