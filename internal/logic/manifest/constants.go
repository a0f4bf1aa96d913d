package manifest

// Label keys applied to every derived object.
const (
	LabelName         = "app.kubernetes.io/name"
	LabelManagedBy    = "app.kubernetes.io/managed-by"
	LabelWorkloadType = "gati.dev/workload-type"
	LabelVersion      = "gati.dev/version"

	managedByValue = "gati-operator"
)

// Default resource requests and limits, applied when a spec omits them.
const (
	DefaultCPURequest    = "100m"
	DefaultMemoryRequest = "128Mi"
	DefaultCPULimit      = "500m"
	DefaultMemoryLimit   = "512Mi"
)

// Health probe tuning. Both probes hit HTTP GET /health on the workload port.
const (
	healthPath = "/health"

	readinessInitialDelaySeconds = 5
	readinessPeriodSeconds       = 10
	readinessTimeoutSeconds      = 3
	readinessFailureThreshold    = 3

	livenessInitialDelaySeconds = 15
	livenessPeriodSeconds       = 20
	livenessTimeoutSeconds      = 5
	livenessFailureThreshold    = 3
)
