package reconcile

import (
	"fmt"

	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/gati-framework/gati-operator/internal/logic/manifest"
	"github.com/gati-framework/gati-operator/internal/logic/store"
	gativ1alpha1 "github.com/gati-framework/gati-operator/pkg/apis/gati/v1alpha1"
)

// workloadFrom converts a watched custom resource into the abstract workload
// the manifest generators consume.
func workloadFrom(obj *unstructured.Unstructured) (manifest.Workload, error) {
	switch store.Kind(obj.GetKind()) {
	case store.KindGatiHandler:
		return handlerWorkload(obj)
	case store.KindGatiModule:
		return moduleWorkload(obj)
	}

	return manifest.Workload{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, obj.GetKind())
}

func handlerWorkload(obj *unstructured.Unstructured) (manifest.Workload, error) {
	var handler gativ1alpha1.GatiHandler

	err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, &handler)
	if err != nil {
		return manifest.Workload{}, fmt.Errorf("decode GatiHandler %s/%s: %w", obj.GetNamespace(), obj.GetName(), err)
	}

	w := manifest.Workload{
		Kind:        manifest.WorkloadHandler,
		Name:        handler.Name,
		Namespace:   handler.Namespace,
		Version:     handler.Spec.Version,
		HandlerPath: handler.Spec.HandlerPath,
		Replicas:    handler.Spec.Replicas,
		Image:       handler.Spec.Image,
		Port:        handler.Spec.Port,
		Resources:   workloadResources(handler.Spec.Resources),
		Env:         handler.Spec.Env,
	}

	if err := validate(w); err != nil {
		return manifest.Workload{}, err
	}

	return w, nil
}

func moduleWorkload(obj *unstructured.Unstructured) (manifest.Workload, error) {
	var module gativ1alpha1.GatiModule

	err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, &module)
	if err != nil {
		return manifest.Workload{}, fmt.Errorf("decode GatiModule %s/%s: %w", obj.GetNamespace(), obj.GetName(), err)
	}

	w := manifest.Workload{
		Kind:         manifest.WorkloadModule,
		Name:         module.Name,
		Namespace:    module.Namespace,
		ModuleName:   module.Spec.ModuleName,
		ModuleType:   string(module.Spec.ModuleType),
		Runtime:      module.Spec.Runtime,
		Capabilities: module.Spec.Capabilities,
		Replicas:     module.Spec.Replicas,
		Image:        module.Spec.Image,
		Port:         module.Spec.Port,
		Resources:    workloadResources(module.Spec.Resources),
		Env:          module.Spec.Env,
	}

	if err := validate(w); err != nil {
		return manifest.Workload{}, err
	}

	return w, nil
}

func workloadResources(r *gativ1alpha1.ResourceRequirements) *manifest.Resources {
	if r == nil {
		return nil
	}

	return &manifest.Resources{
		CPURequest:    r.Requests.CPU,
		MemoryRequest: r.Requests.Memory,
		CPULimit:      r.Limits.CPU,
		MemoryLimit:   r.Limits.Memory,
	}
}

// validate rejects specs the generators cannot render. Quantity strings are
// checked here so generation further down never panics on user input.
func validate(w manifest.Workload) error {
	if w.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSpec)
	}

	if w.Replicas < 0 {
		return fmt.Errorf("%w: replicas %d < 0", ErrInvalidSpec, w.Replicas)
	}

	if w.Image == "" {
		return fmt.Errorf("%w: empty image", ErrInvalidSpec)
	}

	if w.Port <= 0 || w.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidSpec, w.Port)
	}

	if w.Resources != nil {
		quantities := []string{
			w.Resources.CPURequest,
			w.Resources.MemoryRequest,
			w.Resources.CPULimit,
			w.Resources.MemoryLimit,
		}

		for _, q := range quantities {
			if q == "" {
				continue
			}

			if _, err := resource.ParseQuantity(q); err != nil {
				return fmt.Errorf("%w: quantity %q: %v", ErrInvalidSpec, q, err)
			}
		}
	}

	return nil
}
