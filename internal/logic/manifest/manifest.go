// Package manifest maps abstract workload specifications onto concrete
// Deployment, Service, and ConfigMap shapes. All functions are pure: no I/O,
// no shared state, identical output for identical input.
package manifest

import (
	"fmt"
	"sort"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// Deployment derives the workload's Deployment: one container on a single
// port, defaulted resources, and readiness/liveness probes against /health.
func Deployment(w Workload) *appsv1.Deployment {
	name := w.ChildName()
	labels := selectorLabels(w)
	replicas := w.Replicas

	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "apps/v1",
			Kind:       "Deployment",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: w.Namespace,
			Labels:    objectLabels(w),
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: labels,
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: objectLabels(w),
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  string(w.Kind),
							Image: w.Image,
							Ports: []corev1.ContainerPort{
								{
									ContainerPort: w.Port,
									Protocol:      corev1.ProtocolTCP,
								},
							},
							Env:            envVars(w.Env),
							Resources:      requirements(w.Resources),
							ReadinessProbe: readinessProbe(w.Port),
							LivenessProbe:  livenessProbe(w.Port),
						},
					},
				},
			},
		},
	}
}

// Service derives the workload's cluster-internal Service, exposing the
// workload port and selecting on the deployment's labels.
func Service(w Workload) *corev1.Service {
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Service",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      w.ChildName(),
			Namespace: w.Namespace,
			Labels:    objectLabels(w),
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeClusterIP,
			Selector: selectorLabels(w),
			Ports: []corev1.ServicePort{
				{
					Port:       w.Port,
					TargetPort: intstr.FromInt32(w.Port),
					Protocol:   corev1.ProtocolTCP,
				},
			},
		},
	}
}

// ConfigMap flattens the workload spec into plain string configuration for
// consumers that need key/value data rather than structured objects. Env
// entries are prefixed with "env.".
func ConfigMap(w Workload) *corev1.ConfigMap {
	data := map[string]string{
		"name":     w.Name,
		"kind":     string(w.Kind),
		"image":    w.Image,
		"port":     fmt.Sprintf("%d", w.Port),
		"replicas": fmt.Sprintf("%d", w.Replicas),
	}

	if w.Version != "" {
		data["version"] = w.Version
	}

	if w.HandlerPath != "" {
		data["handlerPath"] = w.HandlerPath
	}

	if w.ModuleName != "" {
		data["moduleName"] = w.ModuleName
	}

	if w.ModuleType != "" {
		data["moduleType"] = w.ModuleType
	}

	if w.Runtime != "" {
		data["runtime"] = w.Runtime
	}

	if len(w.Capabilities) > 0 {
		data["capabilities"] = strings.Join(w.Capabilities, ",")
	}

	for k, v := range w.Env {
		data["env."+k] = v
	}

	return &corev1.ConfigMap{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "ConfigMap",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      w.ChildName(),
			Namespace: w.Namespace,
			Labels:    objectLabels(w),
		},
		Data: data,
	}
}

// selectorLabels are the immutable labels a Deployment selects its pods by.
func selectorLabels(w Workload) map[string]string {
	labels := map[string]string{
		LabelName:         w.ChildName(),
		LabelWorkloadType: string(w.Kind),
	}

	if w.Kind == WorkloadHandler && w.Version != "" {
		labels[LabelVersion] = w.Version
	}

	return labels
}

func objectLabels(w Workload) map[string]string {
	labels := selectorLabels(w)
	labels[LabelManagedBy] = managedByValue

	return labels
}

// envVars renders the env map as a name-sorted list so generated manifests
// are deterministic.
func envVars(env map[string]string) []corev1.EnvVar {
	if len(env) == 0 {
		return nil
	}

	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}

	sort.Strings(names)

	vars := make([]corev1.EnvVar, 0, len(names))
	for _, name := range names {
		vars = append(vars, corev1.EnvVar{Name: name, Value: env[name]})
	}

	return vars
}

// requirements computes resource requests and limits, falling back to the
// defaults so they are never left unset.
func requirements(r *Resources) corev1.ResourceRequirements {
	cpuRequest := DefaultCPURequest
	memoryRequest := DefaultMemoryRequest
	cpuLimit := DefaultCPULimit
	memoryLimit := DefaultMemoryLimit

	if r != nil {
		if r.CPURequest != "" {
			cpuRequest = r.CPURequest
		}

		if r.MemoryRequest != "" {
			memoryRequest = r.MemoryRequest
		}

		if r.CPULimit != "" {
			cpuLimit = r.CPULimit
		}

		if r.MemoryLimit != "" {
			memoryLimit = r.MemoryLimit
		}
	}

	return corev1.ResourceRequirements{
		Requests: corev1.ResourceList{
			corev1.ResourceCPU:    resource.MustParse(cpuRequest),
			corev1.ResourceMemory: resource.MustParse(memoryRequest),
		},
		Limits: corev1.ResourceList{
			corev1.ResourceCPU:    resource.MustParse(cpuLimit),
			corev1.ResourceMemory: resource.MustParse(memoryLimit),
		},
	}
}

func readinessProbe(port int32) *corev1.Probe {
	return &corev1.Probe{
		ProbeHandler: corev1.ProbeHandler{
			HTTPGet: &corev1.HTTPGetAction{
				Path: healthPath,
				Port: intstr.FromInt32(port),
			},
		},
		InitialDelaySeconds: readinessInitialDelaySeconds,
		PeriodSeconds:       readinessPeriodSeconds,
		TimeoutSeconds:      readinessTimeoutSeconds,
		FailureThreshold:    readinessFailureThreshold,
	}
}

func livenessProbe(port int32) *corev1.Probe {
	return &corev1.Probe{
		ProbeHandler: corev1.ProbeHandler{
			HTTPGet: &corev1.HTTPGetAction{
				Path: healthPath,
				Port: intstr.FromInt32(port),
			},
		},
		InitialDelaySeconds: livenessInitialDelaySeconds,
		PeriodSeconds:       livenessPeriodSeconds,
		TimeoutSeconds:      livenessTimeoutSeconds,
		FailureThreshold:    livenessFailureThreshold,
	}
}
