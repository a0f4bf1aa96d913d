package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// GatiHandler declares a deployable HTTP handler. The operator derives a
// Deployment and a Service (named handler-{name}) from its spec.
type GatiHandler struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   HandlerSpec    `json:"spec"`
	Status WorkloadStatus `json:"status,omitempty"`
}

// HandlerSpec is the desired state of a GatiHandler.
type HandlerSpec struct {
	// HandlerPath is the logical location of the executable unit.
	HandlerPath string `json:"handlerPath"`
	// Version is used to derive child-object labels and route traffic.
	Version  string `json:"version"`
	Replicas int32  `json:"replicas"`
	Image    string `json:"image"`
	Port     int32  `json:"port"`
	// Resources overrides the default request/limit pair when set.
	Resources *ResourceRequirements `json:"resources,omitempty"`
	Env       map[string]string     `json:"env,omitempty"`
	// Timescape carries hints for the external version router; the operator
	// persists but never interprets them.
	Timescape *TimescapeHints `json:"timescape,omitempty"`
}

// TimescapeHints are consumed by the version-routing component.
type TimescapeHints struct {
	Breaking      *bool    `json:"breaking,omitempty"`
	RoutingWeight *float64 `json:"routingWeight,omitempty"`
}

// GatiHandlerList contains a list of GatiHandler.
type GatiHandlerList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []GatiHandler `json:"items"`
}

// GatiModule declares a deployable module runtime. The operator derives a
// Deployment and a Service (named module-{name}) from its spec.
type GatiModule struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ModuleSpec     `json:"spec"`
	Status WorkloadStatus `json:"status,omitempty"`
}

// ModuleType enumerates the supported module packaging formats.
type ModuleType string

const (
	ModuleTypeNode ModuleType = "node"
	ModuleTypeWasm ModuleType = "wasm"
	ModuleTypeOCI  ModuleType = "oci"
)

// ModuleSpec is the desired state of a GatiModule.
type ModuleSpec struct {
	ModuleName string     `json:"moduleName"`
	ModuleType ModuleType `json:"moduleType"`
	// Runtime identifies the runtime that hosts the module.
	Runtime      string                `json:"runtime"`
	Replicas     int32                 `json:"replicas"`
	Image        string                `json:"image"`
	Port         int32                 `json:"port"`
	Resources    *ResourceRequirements `json:"resources,omitempty"`
	Capabilities []string              `json:"capabilities,omitempty"`
	Env          map[string]string     `json:"env,omitempty"`
}

// GatiModuleList contains a list of GatiModule.
type GatiModuleList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []GatiModule `json:"items"`
}

// GatiVersion records a deployed handler version for the version router.
// It is data-only: the operator persists it but derives no child objects;
// status is written by the routing component.
type GatiVersion struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   VersionSpec   `json:"spec"`
	Status VersionStatus `json:"status,omitempty"`
}

// VersionSpec is the declared state of a GatiVersion.
type VersionSpec struct {
	VersionID string `json:"versionId"`
	Breaking  bool   `json:"breaking"`
	// RoutingWeight is the share of traffic (0-100) the router should send
	// to this version.
	RoutingWeight  int32    `json:"routingWeight"`
	Transformers   []string `json:"transformers,omitempty"`
	DeploymentName string   `json:"deploymentName,omitempty"`
	ServiceName    string   `json:"serviceName,omitempty"`
}

// VersionPhase is the lifecycle phase of a routed version.
type VersionPhase string

const (
	VersionPhaseActive         VersionPhase = "Active"
	VersionPhaseDraining       VersionPhase = "Draining"
	VersionPhaseDecommissioned VersionPhase = "Decommissioned"
)

// VersionStatus is the observed state of a GatiVersion, owned by the router.
type VersionStatus struct {
	Phase                VersionPhase `json:"phase,omitempty"`
	TrafficCount         *int64       `json:"trafficCount,omitempty"`
	LastTrafficTimestamp *metav1.Time `json:"lastTrafficTimestamp,omitempty"`
	DecommissionedAt     *metav1.Time `json:"decommissionedAt,omitempty"`
}

// GatiVersionList contains a list of GatiVersion.
type GatiVersionList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []GatiVersion `json:"items"`
}

// WorkloadPhase is the lifecycle phase of a handler or module workload.
type WorkloadPhase string

const (
	WorkloadPhasePending        WorkloadPhase = "Pending"
	WorkloadPhaseRunning        WorkloadPhase = "Running"
	WorkloadPhaseFailed         WorkloadPhase = "Failed"
	WorkloadPhaseDecommissioned WorkloadPhase = "Decommissioned"
)

// WorkloadStatus is the observed state of a GatiHandler or GatiModule.
// The operator does not write it; an external status reporter may.
type WorkloadStatus struct {
	Phase         WorkloadPhase       `json:"phase,omitempty"`
	Replicas      *int32              `json:"replicas,omitempty"`
	ReadyReplicas *int32              `json:"readyReplicas,omitempty"`
	LastUpdated   *metav1.Time        `json:"lastUpdated,omitempty"`
	Conditions    []WorkloadCondition `json:"conditions,omitempty"`
}

// WorkloadCondition is one observed condition of a workload.
type WorkloadCondition struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// ResourceRequirements is a CPU/memory request and limit pair expressed as
// Kubernetes quantity strings (e.g. "100m", "128Mi").
type ResourceRequirements struct {
	Requests ResourceList `json:"requests,omitempty"`
	Limits   ResourceList `json:"limits,omitempty"`
}

// ResourceList holds quantity strings for CPU and memory.
type ResourceList struct {
	CPU    string `json:"cpu,omitempty"`
	Memory string `json:"memory,omitempty"`
}
