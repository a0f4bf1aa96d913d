package v1alpha1

// Group and version of the gati custom resources.
const (
	Group   = "gati.dev"
	Version = "v1alpha1"

	// APIVersion is the group/version string carried by every resource.
	APIVersion = Group + "/" + Version
)

// Kind names of the gati custom resources.
const (
	KindGatiHandler = "GatiHandler"
	KindGatiModule  = "GatiModule"
	KindGatiVersion = "GatiVersion"
)

// Plural resource names, used to build REST paths.
const (
	ResourceGatiHandlers = "gatihandlers"
	ResourceGatiModules  = "gatimodules"
	ResourceGatiVersions = "gativersions"
)
