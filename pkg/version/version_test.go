package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	// "dev" is the default; ldflags stamp the real version at build time.
	if Version == "dev" {
		return
	}
	semver := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	require.True(t, semver.MatchString(Version), "unexpected version format: %s", Version)
}

func TestString_OneLineForm(t *testing.T) {
	s := String()
	assert.Contains(t, s, "stacfan")
	assert.Contains(t, s, Version)
	assert.Contains(t, s, "commit:")
}

func TestShort_ReturnsVersion(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestCurrent_ReflectsRuntime(t *testing.T) {
	b := Current()

	assert.Equal(t, Version, b.Version)
	assert.Equal(t, Commit, b.Commit)
	assert.Equal(t, runtime.Version(), b.GoVersion)
	assert.Equal(t, runtime.GOOS, b.OS)

	data, err := json.Marshal(b)
	require.NoError(t, err)
	for _, field := range []string{"version", "commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, string(data), `"`+field+`"`)
	}
}
