package config

import "time"

// Env key constants. All operator configuration env vars use GATI_ prefix;
// duration values support explicit units (e.g. 500ms, 5s, 2m).

// Path to kubeconfig file. If unset, KUBECONFIG is used as fallback; when
// both are empty the in-cluster service account is used.
const envKeyKubeConfig = "GATI_KUBECONFIG"

// Kubernetes API server URL. If unset, KUBERNETES_MASTER is used as fallback.
const envKeyKubeMaster = "GATI_KUBE_MASTER"

// Namespace the operator watches and writes child objects into.
const envKeyNamespace = "GATI_NAMESPACE"

// Log level: debug, info, warn, error.
const envKeyLogLevel = "GATI_LOG_LEVEL"

// Log format: json or text.
const envKeyLogFormat = "GATI_LOG_FORMAT"

// Port for health/readiness HTTP server.
const envKeyHTTPPort = "GATI_HTTP_PORT"

// Port for Prometheus metrics (GET /metrics).
const envKeyMetricsPort = "GATI_METRICS_PORT"

// Reconciliation retry bound: a failed reconcile is attempted at most
// 1 + max retries times before the notification is given up on.
const (
	envKeyMaxRetries = "GATI_MAX_RETRIES"
	envMaxMaxRetries = 10
)

// First inter-attempt reconciliation delay; doubles per retry. Units: ms, s.
const (
	envKeyRetryInitialDelay = "GATI_RETRY_INITIAL_DELAY"
	envMinRetryInitialDelay = 10 * time.Millisecond
)

// Cap on the inter-attempt reconciliation delay. Units: ms, s.
const envKeyRetryMaxDelay = "GATI_RETRY_MAX_DELAY"

// Optional periodic resync sweep, 5-field cron expression (e.g. "*/5 * * * *").
// Empty disables the sweep.
const envKeyResyncSchedule = "GATI_RESYNC_SCHEDULE"

// Timezone for the resync schedule (IANA, e.g. Europe/Berlin). Defaults to UTC.
const envKeyResyncTZ = "GATI_RESYNC_TZ"

// Standard k8s env keys used as fallback when GATI_* are unset.
const (
	envKeyKubeConfigFallback = "KUBECONFIG"
	envKeyKubeMasterFallback = "KUBERNETES_MASTER"
)
