package config

// ConfigFileName is the configuration file looked up by FindConfig.
const ConfigFileName = "hostinterop.yaml"

// ConfigFileNames are all recognized configuration file names
var ConfigFileNames = []string{"hostinterop.yaml", "hostinterop.yml"}

// Dispatch defaults
const (
	DefaultCacheLimit        = 3
	DefaultLosslessNarrowing = true
	DefaultLogLevel          = "info"
)

// Pseudo members exposed on class handles
const (
	ClassMemberName       = "class"
	StaticMemberName      = "static"
	ConstructorMemberName = "new"
	LengthMemberName      = "length"
)
