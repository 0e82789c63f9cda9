package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"goflare.io/market/models"
	"goflare.io/market/models/enum"
)

const (
	// fulfillmentSubject is where the fulfilment side reports order
	// progress; this core mirrors those reports into order statuses.
	fulfillmentSubject = "fulfillment.event.>"

	// marketSubjectPrefix is where this core publishes its own events.
	marketSubjectPrefix = "market.event."
)

type EventHandler func(context.Context, *models.Event) error

type EventManager struct {
	natsConn *nats.Conn
	handlers map[models.EventType]EventHandler
	logger   *zap.Logger
}

func NewEventManager(natsConn *nats.Conn, logger *zap.Logger) *EventManager {
	return &EventManager{
		natsConn: natsConn,
		handlers: make(map[models.EventType]EventHandler),
		logger:   logger,
	}
}

func (em *EventManager) RegisterHandler(eventType models.EventType, handler EventHandler) {
	em.handlers[eventType] = handler
}

func (em *EventManager) GetHandler(eventType models.EventType) (EventHandler, bool) {
	handler, exists := em.handlers[eventType]
	return handler, exists
}

func (em *EventManager) SubscribeToEvents(wp *WorkerPool) error {
	if em.natsConn == nil {
		return nil
	}

	_, err := em.natsConn.Subscribe(fulfillmentSubject, func(msg *nats.Msg) {
		var event models.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			em.logger.Error("failed to unmarshal event", zap.Error(err))
			return
		}

		wp.Submit(context.Background(), &event)
	})

	return err
}

func (em *EventManager) Publish(event *models.Event) error {
	if em.natsConn == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return em.natsConn.Publish(marketSubjectPrefix+string(event.Type), data)
}

func (s *service) registerEventHandlers() {
	eventHandlers := map[models.EventType]EventHandler{
		models.EventTypeFulfillmentProcessing: s.fulfillmentStatusHandler(enum.OrderStatusProcessing),
		models.EventTypeFulfillmentShipped:    s.fulfillmentStatusHandler(enum.OrderStatusShipped),
		models.EventTypeFulfillmentDelivered:  s.fulfillmentStatusHandler(enum.OrderStatusDelivered),
		models.EventTypeFulfillmentCancelled:  s.handleFulfillmentCancelled,
	}

	for eventType, handler := range eventHandlers {
		s.eventManager.RegisterHandler(eventType, handler)
	}
}

// ProcessEvent is the worker-pool entry point: dedupe, dispatch, mark done.
func (s *service) ProcessEvent(ctx context.Context, e *models.Event) error {
	existing, err := s.event.GetByID(ctx, e.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if existing != nil && existing.Processed {
		s.logger.Debug("skipping already processed event", zap.String("event_id", e.ID))
		return nil
	}
	if existing == nil {
		if err = s.event.Create(ctx, e); err != nil {
			return err
		}
	}

	handler, ok := s.eventManager.GetHandler(e.Type)
	if !ok {
		s.logger.Warn("no handler for event type", zap.String("event_type", string(e.Type)))
		return nil
	}

	if err = handler(ctx, e); err != nil {
		return err
	}

	return s.event.MarkAsProcessed(ctx, e.ID)
}

func (s *service) fulfillmentStatusHandler(status enum.OrderStatus) EventHandler {
	return func(ctx context.Context, e *models.Event) error {
		data, err := decodeOrderEvent(e)
		if err != nil {
			return err
		}

		s.logger.Info("applying fulfilment status",
			zap.Uint64("order_id", data.OrderID),
			zap.String("status", string(status)))

		return s.UpdateOrderStatus(ctx, data.OrderID, status)
	}
}

func (s *service) handleFulfillmentCancelled(ctx context.Context, e *models.Event) error {
	data, err := decodeOrderEvent(e)
	if err != nil {
		return err
	}

	s.logger.Info("cancelling order on fulfilment event", zap.Uint64("order_id", data.OrderID))
	return s.CancelOrder(ctx, data.OrderID)
}

func decodeOrderEvent(e *models.Event) (*models.OrderEventData, error) {
	var data models.OrderEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", e.Type, err)
	}
	return &data, nil
}

func (s *service) publishOrderCreated(ctx context.Context, o *models.Order) {
	s.publishEvent(ctx, models.EventTypeOrderCreated, models.OrderEventData{
		OrderID:   o.ID,
		Reference: o.Reference,
		UserID:    o.UserID,
	})
}

func (s *service) publishFlashSaleCreated(ctx context.Context, sale *models.FlashSale) {
	s.publishEvent(ctx, models.EventTypeFlashSaleCreated, map[string]any{
		"flash_sale_id": sale.ID,
		"name":          sale.Name,
	})
}

// publishEvent is best effort: a publish failure is logged, never surfaced
// to the customer-facing operation that triggered it.
func (s *service) publishEvent(_ context.Context, eventType models.EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event payload", zap.String("event_type", string(eventType)), zap.Error(err))
		return
	}

	e := &models.Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Data: data,
	}
	if err = s.eventManager.Publish(e); err != nil {
		s.logger.Error("failed to publish event", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}
