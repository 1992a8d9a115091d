package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// CheckManifestCompatibility reports whether a manifest written in format manifestVersion can
// be read by a tool that writes supportedVersion.
//
// Compatibility Rules:
//   - Major versions must match exactly
//   - The manifest minor version may not be newer than the supported one
//   - Patch versions can differ
//
// Examples:
//   - Supported 1.1.0, manifest 1.1.3 -> OK (patch differs)
//   - Supported 1.1.0, manifest 1.0.0 -> OK (older minor)
//   - Supported 1.1.0, manifest 1.2.0 -> ERROR (newer minor)
//   - Supported 1.1.0, manifest 2.0.0 -> ERROR (major differs)
func CheckManifestCompatibility(supportedVersion, manifestVersion string) error {
	supportedVersion = strings.TrimPrefix(supportedVersion, "v")
	manifestVersion = strings.TrimPrefix(manifestVersion, "v")

	supported, err := semver.NewVersion(supportedVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeManifestVersion, err, "invalid supported version '%s'", supportedVersion)
	}

	manifest, err := semver.NewVersion(manifestVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeManifestVersion, err, "invalid manifest version '%s'", manifestVersion)
	}

	if manifest.Major() != supported.Major() {
		return errors.Newf(errors.ErrCodeManifestVersion, "major version mismatch: tool reads %d.x.x but manifest is %d.x.x",
			supported.Major(), manifest.Major())
	}

	constraint, err := semver.NewConstraint(fmt.Sprintf("<= %d.%d.x", supported.Major(), supported.Minor()))
	if err != nil {
		return errors.Wrap(errors.ErrCodeManifestVersion, "invalid version constraint", err)
	}

	if !constraint.Check(manifest) {
		return errors.Newf(errors.ErrCodeManifestVersion, "minor version mismatch: tool reads up to %d.%d.x but manifest is %s",
			supported.Major(), supported.Minor(), manifest.String())
	}

	return nil
}
