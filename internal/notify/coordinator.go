package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorandp/utn-frsn-news/internal/domain"
	"github.com/gorandp/utn-frsn-news/internal/logger"
	"github.com/gorandp/utn-frsn-news/internal/storage"
)

// ErrItemNotFound reports a notify task referencing a missing item. The task
// can never succeed and must not be redelivered.
var ErrItemNotFound = errors.New("notify: item not found")

// Coordinator owns the per-item delivery transition. It makes duplicate
// notify tasks a no-op through the persisted delivered marker, so queue
// redelivery never produces a second message.
type Coordinator struct {
	store    storage.Store
	notifier *Notifier
	now      func() time.Time
	log      logger.Logger
}

// NewCoordinator builds the delivery coordinator.
func NewCoordinator(store storage.Store, notifier *Notifier, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Coordinator{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		log:      log,
	}
}

// Handle processes one notify task: load, skip if delivered, deliver, mark.
func (c *Coordinator) Handle(ctx context.Context, task domain.NotifyTask) error {
	item, err := c.store.ItemByID(task.ItemID)
	if err != nil {
		return fmt.Errorf("load item %d: %w", task.ItemID, err)
	}
	if item == nil {
		return fmt.Errorf("%w: id %d", ErrItemNotFound, task.ItemID)
	}

	if item.DeliveredAt != nil {
		c.log.InfoObj("item already delivered, skipping", "item_id", item.ID)
		return nil
	}

	if err := c.notifier.Notify(ctx, item); err != nil {
		return err
	}

	if err := c.store.MarkDelivered(item.ID, c.now().UTC()); err != nil {
		return fmt.Errorf("mark item %d delivered: %w", item.ID, err)
	}
	return nil
}
