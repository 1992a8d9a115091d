package version

// Version is the version of the dataprep tool.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-dataprep/internal/version.Version=1.2.3"
// The default value "main" indicates a development build.
var Version = "main"

// ManifestFormat is the version of the manifest layout written next to every feature table.
const ManifestFormat = "1.1.0"

// GetVersion returns the current version of the tool.
func GetVersion() string {
	return Version
}
