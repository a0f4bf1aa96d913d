package k8s

import (
	"fmt"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/gati-framework/gati-operator/internal/logic/store"
	gativ1alpha1 "github.com/gati-framework/gati-operator/pkg/apis/gati/v1alpha1"
)

// resources maps store kinds onto REST resources. Every kind the store can
// hold must have an entry here.
var resources = map[store.Kind]schema.GroupVersionResource{
	store.KindDeployment: {Group: "apps", Version: "v1", Resource: "deployments"},
	store.KindService:    {Group: "", Version: "v1", Resource: "services"},
	store.KindConfigMap:  {Group: "", Version: "v1", Resource: "configmaps"},

	store.KindGatiHandler: {
		Group:    gativ1alpha1.Group,
		Version:  gativ1alpha1.Version,
		Resource: gativ1alpha1.ResourceGatiHandlers,
	},
	store.KindGatiModule: {
		Group:    gativ1alpha1.Group,
		Version:  gativ1alpha1.Version,
		Resource: gativ1alpha1.ResourceGatiModules,
	},
	store.KindGatiVersion: {
		Group:    gativ1alpha1.Group,
		Version:  gativ1alpha1.Version,
		Resource: gativ1alpha1.ResourceGatiVersions,
	},
}

func resourceFor(kind store.Kind) (schema.GroupVersionResource, error) {
	gvr, ok := resources[kind]
	if !ok {
		return schema.GroupVersionResource{}, fmt.Errorf("no REST resource mapped for kind %q", kind)
	}

	return gvr, nil
}
