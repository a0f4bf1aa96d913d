package manifest

// WorkloadKind distinguishes handler workloads from module workloads.
type WorkloadKind string

const (
	WorkloadHandler WorkloadKind = "handler"
	WorkloadModule  WorkloadKind = "module"
)

// Workload is the abstract workload specification the generators consume.
// It is deliberately decoupled from the custom-resource wire types; the
// reconciler converts CR specs into it.
type Workload struct {
	Kind      WorkloadKind
	Name      string
	Namespace string

	// Version tags handler child objects; empty for modules.
	Version string
	// HandlerPath is the logical location of a handler's executable unit.
	HandlerPath string

	// Module metadata; empty for handlers.
	ModuleName   string
	ModuleType   string
	Runtime      string
	Capabilities []string

	Replicas int32
	Image    string
	Port     int32

	// Resources, when nil, gets the default request/limit pair.
	Resources *Resources
	Env       map[string]string
}

// Resources is a CPU/memory request and limit pair as quantity strings.
type Resources struct {
	CPURequest    string
	MemoryRequest string
	CPULimit      string
	MemoryLimit   string
}

// ChildName returns the deterministic name shared by every child object of
// the workload. Deletes rely on it to locate children without a live index.
func (w Workload) ChildName() string {
	return string(w.Kind) + "-" + w.Name
}
