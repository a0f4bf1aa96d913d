package store

import "fmt"

// Kind is the Kubernetes kind of an object the store can hold.
type Kind string

const (
	KindDeployment Kind = "Deployment"
	KindService    Kind = "Service"
	KindConfigMap  Kind = "ConfigMap"

	KindGatiHandler Kind = "GatiHandler"
	KindGatiModule  Kind = "GatiModule"
	KindGatiVersion Kind = "GatiVersion"
)

// Key uniquely identifies a reconcilable object.
type Key struct {
	Kind      Kind
	Namespace string
	Name      string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Kind, k.Namespace, k.Name)
}
