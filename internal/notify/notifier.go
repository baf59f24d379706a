package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorandp/utn-frsn-news/internal/domain"
	"github.com/gorandp/utn-frsn-news/internal/logger"
	"github.com/gorandp/utn-frsn-news/internal/telegram"
)

// Messenger is the delivery surface the notifier needs.
type Messenger interface {
	SendMessage(ctx context.Context, chatID, text string) error
	SendPhoto(ctx context.Context, chatID, photoURL, caption string) error
}

// Notifier renders a persisted item and delivers it to the public chat.
type Notifier struct {
	messenger Messenger
	photoURL  func(photoRef string) string
	chatID    string
	log       logger.Logger
}

// NewNotifier builds a notifier delivering to chatID. photoURL resolves a
// stored photo reference into its public URL.
func NewNotifier(messenger Messenger, photoURL func(string) string, chatID string, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Notifier{
		messenger: messenger,
		photoURL:  photoURL,
		chatID:    chatID,
		log:       log,
	}
}

// Notify sends the photo (when the item has one) followed by the full text.
// A photo reference the provider reports as unreachable is degraded to a text
// message linking the photo inline, which counts as success for that step.
func (n *Notifier) Notify(ctx context.Context, item *domain.Item) error {
	if item == nil {
		return fmt.Errorf("item must not be nil")
	}

	if item.PhotoRef != "" {
		url := n.photoURL(item.PhotoRef)
		err := n.messenger.SendPhoto(ctx, n.chatID, url, Header(item))
		if errors.Is(err, telegram.ErrBadPhotoReference) {
			n.log.WarnObj("photo rejected, sending fallback link", "item_id", item.ID)
			fallback := fmt.Sprintf("<a href=\"%s\">FOTO</a> (no se pudo cargar la foto)\n\n%s", url, Header(item))
			err = n.messenger.SendMessage(ctx, n.chatID, fallback)
		}
		if err != nil {
			return fmt.Errorf("send photo for item %d: %w", item.ID, err)
		}
	}

	if err := n.messenger.SendMessage(ctx, n.chatID, Message(item)); err != nil {
		return fmt.Errorf("send message for item %d: %w", item.ID, err)
	}

	n.log.InfoObj("item notified", "item_id", item.ID)
	return nil
}
