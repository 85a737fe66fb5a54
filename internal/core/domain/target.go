package domain

import (
	"os"
	"regexp"
	"strings"

	"go.trai.ch/zerr"
)

// VersionPlaceholder is the variable expanded in base image templates.
const VersionPlaceholder = "version"

var versionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// BuildTarget identifies one matrix entry: a runtime version and the image it resolves to.
type BuildTarget struct {
	RuntimeVersion string `json:"version" yaml:"version"`
	BaseImage      string `json:"image"   yaml:"image"`
}

// ValidateVersion checks that a runtime version selector is non-empty and safe
// to embed in image references, cache keys and directory names.
func ValidateVersion(version string) error {
	if !versionPattern.MatchString(version) {
		return zerr.With(zerr.Wrap(ErrInvalidVersion, ""), "version", version)
	}
	return nil
}

// ExpandImage substitutes ${version} or $version in template.
// Any other placeholder is rejected.
func ExpandImage(template, version string) (string, error) {
	var unknown []string
	image := os.Expand(template, func(name string) string {
		if name == VersionPlaceholder {
			return version
		}
		unknown = append(unknown, name)
		return ""
	})

	if len(unknown) > 0 {
		err := zerr.With(zerr.Wrap(ErrInvalidImageTemplate, ""), "template", template)
		return "", zerr.With(err, "placeholders", strings.Join(unknown, ","))
	}
	if strings.TrimSpace(image) == "" {
		return "", zerr.With(zerr.Wrap(ErrInvalidImageTemplate, ""), "template", template)
	}
	return image, nil
}

// NewBuildTarget validates version and resolves template into a BuildTarget.
// Failures are returned as *ProvisionError.
func NewBuildTarget(template, version string) (BuildTarget, error) {
	if err := ValidateVersion(version); err != nil {
		return BuildTarget{}, &ProvisionError{Version: version, Cause: err}
	}

	image, err := ExpandImage(template, version)
	if err != nil {
		return BuildTarget{}, &ProvisionError{Version: version, Cause: err}
	}

	return BuildTarget{RuntimeVersion: version, BaseImage: image}, nil
}

// String returns "version (image)".
func (t BuildTarget) String() string {
	if t.BaseImage == "" {
		return t.RuntimeVersion
	}
	return t.RuntimeVersion + " (" + t.BaseImage + ")"
}
