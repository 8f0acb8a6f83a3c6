package webhooks

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/postlane/platform/internal/app/domain/webhook"
	"github.com/postlane/platform/pkg/logger"
)

// ErrBadAuth is returned for inbound deliveries with a wrong shared secret.
var ErrBadAuth = fmt.Errorf("webhook authorization failed")

// Handler reacts to a parsed event. Handlers run synchronously in delivery
// order; dedup guarantees at most one invocation per signature.
type Handler func(ctx context.Context, ev webhook.Event) error

// Dispatcher parses inbound provider deliveries into typed events, drops
// duplicates by signature, and fans events out to registered handlers.
type Dispatcher struct {
	service  *Service
	secret   string
	handlers map[webhook.EventType][]Handler
	log      *logger.Logger
	now      func() time.Time
}

// NewDispatcher constructs a dispatcher. secret, when set, must match the
// Authorization header of every inbound delivery.
func NewDispatcher(service *Service, secret string, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewDefault("webhook-dispatcher")
	}
	return &Dispatcher{
		service:  service,
		secret:   strings.TrimSpace(secret),
		handlers: map[webhook.EventType][]Handler{},
		log:      log,
		now:      time.Now,
	}
}

// On registers a handler for an event type.
func (d *Dispatcher) On(typ webhook.EventType, h Handler) {
	d.handlers[typ] = append(d.handlers[typ], h)
}

// Authorize checks the shared secret on an inbound delivery.
func (d *Dispatcher) Authorize(header string) error {
	if d.secret == "" {
		return nil
	}
	header = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if subtle.ConstantTimeCompare([]byte(header), []byte(d.secret)) != 1 {
		return ErrBadAuth
	}
	return nil
}

// Dispatch parses a raw delivery payload and runs handlers for each
// first-seen event. Returns the number of newly processed events.
func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte) (int, error) {
	if !gjson.ValidBytes(payload) {
		return 0, fmt.Errorf("invalid webhook payload")
	}

	events := parseEvents(payload)
	if len(events) == 0 {
		return 0, nil
	}

	processed := 0
	for _, ev := range events {
		ev.SeenAt = d.now().UTC()
		stored, firstSeen, err := d.service.store.RecordEvent(ctx, ev)
		if err != nil {
			return processed, fmt.Errorf("record event %s: %w", ev.Signature, err)
		}
		if !firstSeen {
			d.log.WithField("signature", ev.Signature).Debug("duplicate delivery dropped")
			continue
		}

		for _, h := range d.handlers[stored.Type] {
			if err := h(ctx, stored); err != nil {
				d.log.WithError(err).
					WithField("signature", stored.Signature).
					WithField("type", stored.Type).
					Error("webhook handler failed")
			}
		}
		processed++
	}
	return processed, nil
}

// parseEvents extracts typed events from an enhanced-transactions payload.
// The payload is either one transaction object or an array of them.
func parseEvents(payload []byte) []webhook.Event {
	root := gjson.ParseBytes(payload)

	var txs []gjson.Result
	if root.IsArray() {
		txs = root.Array()
	} else {
		txs = []gjson.Result{root}
	}

	var events []webhook.Event
	for _, tx := range txs {
		signature := tx.Get("signature").String()
		if signature == "" {
			continue
		}

		typ := webhook.EventTokenTransfer
		if strings.EqualFold(tx.Get("type").String(), "payment") {
			typ = webhook.EventPayment
		}

		ev := webhook.Event{
			Type:      typ,
			Signature: signature,
			Raw:       tx.Raw,
		}
		if transfer := tx.Get("tokenTransfers.0"); transfer.Exists() {
			ev.Wallet = transfer.Get("toUserAccount").String()
			ev.Amount = transfer.Get("tokenAmount").Float()
		} else {
			ev.Wallet = tx.Get("account").String()
			ev.Amount = tx.Get("amount").Float()
		}
		events = append(events, ev)
	}
	return events
}
