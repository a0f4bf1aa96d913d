// Package reconcile applies the delta between a resource's desired state and
// the cluster's actual state: on add/modify it upserts the derived child
// objects, on delete it removes them by their deterministic names.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/gati-framework/gati-operator/internal/logic/manifest"
	"github.com/gati-framework/gati-operator/internal/logic/store"
)

// State is where a resource key landed after a reconciliation attempt.
type State string

const (
	StateAbsent  State = "Absent"
	StateDesired State = "Desired"
	StateApplied State = "Applied"
	StateFailed  State = "Failed"
)

// childKinds are the kinds derived from every handler/module, in apply order.
// Deployment goes first: a Service with no backing Deployment is harmless,
// the reverse order is not.
var childKinds = []store.Kind{store.KindDeployment, store.KindService, store.KindConfigMap}

// Store is the resource-store surface the reconciler needs.
type Store interface {
	Apply(ctx context.Context, obj *unstructured.Unstructured) error
	Delete(ctx context.Context, kind store.Kind, namespace, name string) error
}

// Reconciler closes the gap between one custom resource and its child objects.
type Reconciler struct {
	logger *slog.Logger
	store  Store
}

// New creates a reconciler writing through the given store.
func New(logger *slog.Logger, s Store) *Reconciler {
	return &Reconciler{
		logger: logger,
		store:  s,
	}
}

// Reconcile processes one change notification. Any error leaves the key in
// StateFailed for this attempt; the caller retries the whole reconcile, not
// individual sub-steps, so a retry never starts from a half-applied view.
func (r *Reconciler) Reconcile(ctx context.Context, event store.Event) (State, error) {
	key := event.Key()

	switch event.Type {
	case store.Deleted:
		if err := r.deleteChildren(ctx, event.Resource); err != nil {
			return StateFailed, err
		}

		r.logger.InfoContext(ctx, "child objects removed",
			"kind", key.Kind,
			"namespace", key.Namespace,
			"name", key.Name,
		)

		return StateAbsent, nil

	case store.Added, store.Modified:
		if err := r.applyChildren(ctx, event.Resource); err != nil {
			return StateFailed, err
		}

		r.logger.InfoContext(ctx, "child objects applied",
			"kind", key.Kind,
			"namespace", key.Namespace,
			"name", key.Name,
		)

		return StateApplied, nil
	}

	return StateFailed, fmt.Errorf("unknown event type %q for %s", event.Type, key)
}

func (r *Reconciler) applyChildren(ctx context.Context, obj *unstructured.Unstructured) error {
	workload, err := workloadFrom(obj)
	if err != nil {
		return err
	}

	children := []any{
		manifest.Deployment(workload),
		manifest.Service(workload),
		manifest.ConfigMap(workload),
	}

	for _, child := range children {
		u, err := toUnstructured(child)
		if err != nil {
			return err
		}

		if err := r.store.Apply(ctx, u); err != nil {
			return err
		}
	}

	return nil
}

// deleteChildren removes the derived objects by their deterministic names,
// tolerating ones that are already gone. Only identity is needed here, so a
// malformed spec can still have its children cleaned up.
func (r *Reconciler) deleteChildren(ctx context.Context, obj *unstructured.Unstructured) error {
	var workloadKind manifest.WorkloadKind

	switch store.Kind(obj.GetKind()) {
	case store.KindGatiHandler:
		workloadKind = manifest.WorkloadHandler
	case store.KindGatiModule:
		workloadKind = manifest.WorkloadModule
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, obj.GetKind())
	}

	name := manifest.Workload{Kind: workloadKind, Name: obj.GetName()}.ChildName()

	for _, kind := range childKinds {
		if err := r.store.Delete(ctx, kind, obj.GetNamespace(), name); err != nil {
			return err
		}
	}

	return nil
}

func toUnstructured(obj any) (*unstructured.Unstructured, error) {
	raw, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, fmt.Errorf("convert %T to unstructured: %w", obj, err)
	}

	return &unstructured.Unstructured{Object: raw}, nil
}
