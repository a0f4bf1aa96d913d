package k8s

import (
	"context"
	"fmt"
	"log/slog"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/dynamic"

	"github.com/gati-framework/gati-operator/internal/logic/store"
)

// adapter implements the store backend over the Kubernetes API using the
// dynamic client, so built-in kinds and gati custom resources go through
// the same code path.
type adapter struct {
	logger *slog.Logger
	client dynamic.Interface
}

// New creates a Kubernetes-backed store backend.
func New(logger *slog.Logger, client dynamic.Interface) store.Backend {
	return &adapter{
		logger: logger,
		client: client,
	}
}

var _ store.Backend = (*adapter)(nil)

func (a *adapter) Create(ctx context.Context, obj *unstructured.Unstructured) error {
	kind := store.Kind(obj.GetKind())

	gvr, err := resourceFor(kind)
	if err != nil {
		return err
	}

	_, err = a.client.Resource(gvr).Namespace(obj.GetNamespace()).Create(ctx, obj, metav1.CreateOptions{})
	if err != nil {
		return classify(err, kind, obj.GetNamespace(), obj.GetName(), "create")
	}

	return nil
}

func (a *adapter) Update(ctx context.Context, obj *unstructured.Unstructured) error {
	kind := store.Kind(obj.GetKind())

	gvr, err := resourceFor(kind)
	if err != nil {
		return err
	}

	_, err = a.client.Resource(gvr).Namespace(obj.GetNamespace()).Update(ctx, obj, metav1.UpdateOptions{})
	if err != nil {
		return classify(err, kind, obj.GetNamespace(), obj.GetName(), "update")
	}

	return nil
}

func (a *adapter) Get(ctx context.Context, kind store.Kind, namespace, name string) (*unstructured.Unstructured, error) {
	gvr, err := resourceFor(kind)
	if err != nil {
		return nil, err
	}

	obj, err := a.client.Resource(gvr).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, classify(err, kind, namespace, name, "get")
	}

	return obj, nil
}

func (a *adapter) Delete(ctx context.Context, kind store.Kind, namespace, name string) error {
	gvr, err := resourceFor(kind)
	if err != nil {
		return err
	}

	err = a.client.Resource(gvr).Namespace(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil {
		return classify(err, kind, namespace, name, "delete")
	}

	return nil
}

func (a *adapter) List(ctx context.Context, kind store.Kind, namespace, labelSelector string) ([]*unstructured.Unstructured, error) {
	gvr, err := resourceFor(kind)
	if err != nil {
		return nil, err
	}

	list, err := a.client.Resource(gvr).Namespace(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, classify(err, kind, namespace, "", "list")
	}

	items := make([]*unstructured.Unstructured, 0, len(list.Items))
	for i := range list.Items {
		items = append(items, &list.Items[i])
	}

	return items, nil
}

// classify maps Kubernetes API errors onto the store's error taxonomy.
// Conflicts cover both stale-resource-version updates and create races.
func classify(err error, kind store.Kind, namespace, name, op string) error {
	switch {
	case apierrors.IsNotFound(err):
		return &store.NotFoundError{Kind: kind, Namespace: namespace, Name: name}
	case apierrors.IsConflict(err), apierrors.IsAlreadyExists(err):
		return &store.ConflictError{Kind: kind, Namespace: namespace, Name: name, Err: err}
	}

	return fmt.Errorf("%s %s %s/%s: %w", op, kind, namespace, name, err)
}
