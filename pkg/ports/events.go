package ports

import "github.com/LynxShu/ST-var-manager/pkg/domain"

// EventHandler receives one host notification.
type EventHandler func(domain.Event)

// EventSource delivers host notifications.
type EventSource interface {
	// Subscribe registers handler for kind. Calling the returned function
	// removes the subscription; it is safe to call more than once.
	Subscribe(kind domain.EventKind, handler EventHandler) (unsubscribe func())
}
