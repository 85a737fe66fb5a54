package domain

import (
	"path"
	"regexp"
	"strings"

	"go.trai.ch/zerr"
)

// DefaultCacheNamespace prefixes every cache key unless the definition overrides it.
const DefaultCacheNamespace = "cache"

var purposePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// CacheSpec declares a cache volume by purpose and mount path, before it is keyed by version.
type CacheSpec struct {
	Purpose   string `yaml:"purpose"`
	MountPath string `yaml:"path"`
}

// CacheBinding is a cache volume attached to one environment.
type CacheBinding struct {
	MountPath string `json:"mountPath" yaml:"mountPath"`
	CacheKey  string `json:"cacheKey"  yaml:"cacheKey"`
	Purpose   string `json:"purpose"   yaml:"purpose"`
}

// Validate checks the purpose and mount path of a cache declaration.
func (s CacheSpec) Validate() error {
	if !purposePattern.MatchString(s.Purpose) {
		return zerr.With(zerr.Wrap(ErrInvalidCachePurpose, ""), "purpose", s.Purpose)
	}
	if !path.IsAbs(s.MountPath) || path.Clean(s.MountPath) != s.MountPath {
		return zerr.With(zerr.Wrap(ErrInvalidMountPath, ""), "path", s.MountPath)
	}
	return nil
}

// ValidateNamespace checks that a cache namespace keeps keys unambiguous.
func ValidateNamespace(namespace string) error {
	if !purposePattern.MatchString(namespace) {
		return zerr.With(zerr.Wrap(ErrInvalidNamespace, ""), "namespace", namespace)
	}
	return nil
}

// CacheKey returns the volume name for a (version, purpose) pair, e.g. "cache-18-npm".
// The purpose never contains '-', so the last separator always splits it off and
// distinct pairs map to distinct keys.
func CacheKey(namespace, version, purpose string) string {
	return namespace + "-" + version + "-" + purpose
}

// ParseCacheKey splits a key built by CacheKey back into its parts.
func ParseCacheKey(key string) (namespace, version, purpose string, ok bool) {
	ns, rest, found := strings.Cut(key, "-")
	if !found {
		return "", "", "", false
	}
	i := strings.LastIndex(rest, "-")
	if i <= 0 || i == len(rest)-1 {
		return "", "", "", false
	}
	return ns, rest[:i], rest[i+1:], true
}

// Bind resolves the cache into a binding for version.
func (s CacheSpec) Bind(namespace, version string) CacheBinding {
	return CacheBinding{
		MountPath: s.MountPath,
		CacheKey:  CacheKey(namespace, version, s.Purpose),
		Purpose:   s.Purpose,
	}
}
