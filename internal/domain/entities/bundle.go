package entities

// ExecutableSource records which resolution rule chose an executable
type ExecutableSource string

const (
	// ExecutableFromDeclaredName means the Info.plist executable name was used
	ExecutableFromDeclaredName ExecutableSource = "declared"
	// ExecutableFromBundleStem means the name was derived from the .app directory
	ExecutableFromBundleStem ExecutableSource = "bundle-stem"
)

// ExecutableCandidate is one entry of the ranked executable resolution list
type ExecutableCandidate struct {
	Name   string
	Path   string
	Source ExecutableSource
}

// ExecutableRef is the resolved primary executable of a bundle
type ExecutableRef struct {
	BundleDir string
	Path      string
	Name      string
	Source    ExecutableSource
}

// AppInfo holds the Info.plist fields binscope cares about
type AppInfo struct {
	Executable string
	BundleID   string
	Name       string
	Version    string
	MinimumOS  string
}
