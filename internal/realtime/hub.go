package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"taskflow/backend/internal/config"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is a row-level change notification delivered to feed subscribers.
// Subscribers must handle events idempotently: re-applying an UPDATE that was
// already merged locally must not corrupt state.
type Event struct {
	EventType string          `json:"event_type"`
	Table     string          `json:"table"`
	RowID     uuid.UUID       `json:"row_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	At        time.Time       `json:"at"`
}

// Hub bridges service write paths to per-table redis pub/sub channels.
// Publishing is fire-and-forget; subscribing attaches a filtered listener
// that must be released via the returned cancel function.
type Hub struct {
	client *redis.Client
	cfg    config.FeedConfig
}

func NewHub(client *redis.Client, cfg config.FeedConfig) *Hub {
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = "feed"
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = 64
	}
	return &Hub{client: client, cfg: cfg}
}

func (h *Hub) channel(table string) string {
	return h.cfg.ChannelPrefix + ":" + table
}

// Publish pushes a change event onto the table's channel. Failures are logged
// and swallowed: the write that triggered the event has already committed and
// must not be failed by feed delivery.
func (h *Hub) Publish(table, eventType string, rowID uuid.UUID, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("feed: dropping %s event for %s/%s: %v", eventType, table, rowID, err)
		return
	}

	event := Event{
		EventType: eventType,
		Table:     table,
		RowID:     rowID,
		Payload:   raw,
		At:        time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("feed: dropping event for %s/%s: %v", table, rowID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.client.Publish(ctx, h.channel(table), data).Err(); err != nil {
		log.Printf("feed: publish to %s failed: %v", h.channel(table), err)
	}
}

// Subscription is a live feed listener. Events arrives on C; Close releases
// the underlying redis subscription and must be called on every exit path.
type Subscription struct {
	C      <-chan Event
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

func (s *Subscription) Close() {
	s.cancel()
	s.pubsub.Close()
}

// Subscribe attaches a listener to a table's channel, optionally filtered to
// a single row. A zero rowID subscribes to the whole table.
func (h *Hub) Subscribe(ctx context.Context, table string, rowID uuid.UUID) (*Subscription, error) {
	pubsub := h.client.Subscribe(ctx, h.channel(table))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan Event, h.cfg.SubscriberBuffer)

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("feed: malformed event on %s: %v", msg.Channel, err)
					continue
				}
				if rowID != uuid.Nil && event.RowID != rowID {
					continue
				}
				select {
				case out <- event:
				default:
					// Slow consumer: drop rather than block the hub. The
					// subscriber reconciles from the store on reconnect.
					log.Printf("feed: subscriber lagging on %s, dropping event", msg.Channel)
				}
			}
		}
	}()

	return &Subscription{C: out, pubsub: pubsub, cancel: cancel}, nil
}
