package controller

import (
	"context"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/gati-framework/gati-operator/internal/logic/reconcile"
	"github.com/gati-framework/gati-operator/internal/logic/store"
)

// Store is the resource-store surface the controller needs: watch
// subscriptions plus listing for the periodic resync sweep.
type Store interface {
	Watch(ctx context.Context, kind store.Kind, namespace string, onEvent store.EventHandler) error
	List(ctx context.Context, kind store.Kind, namespace, labelSelector string) ([]*unstructured.Unstructured, error)
}

// Reconciler applies one change notification against the cluster.
type Reconciler interface {
	Reconcile(ctx context.Context, event store.Event) (reconcile.State, error)
}
