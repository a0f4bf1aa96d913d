package store

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// EventType is the change type carried by a watch notification.
type EventType string

const (
	Added    EventType = "ADDED"
	Modified EventType = "MODIFIED"
	Deleted  EventType = "DELETED"
)

// Event is one change notification from a watch stream.
type Event struct {
	Type     EventType
	Resource *unstructured.Unstructured
}

// Key returns the identity of the object the event refers to.
func (e Event) Key() Key {
	return Key{
		Kind:      Kind(e.Resource.GetKind()),
		Namespace: e.Resource.GetNamespace(),
		Name:      e.Resource.GetName(),
	}
}

// EventHandler receives watch notifications. Handlers for the same
// subscription are invoked sequentially in stream order.
type EventHandler func(Event)
