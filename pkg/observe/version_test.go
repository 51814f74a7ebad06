package observe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVersionBump(t *testing.T) {
	tests := []struct {
		title string
		want  VersionBump
	}{
		{"Bump lodash from 4.17.20 to 4.17.21", BumpPatch},
		{"Bump golang.org/x/crypto from 0.17.0 to 0.18.0", BumpMinor},
		{"Bump react from 17.0.2 to 18.2.0", BumpMajor},
		{"Bump sdk from v1.2.3 to v2.0.0", BumpMajor},
		{"Bump pkg from 1.0.0-rc.1 to 1.0.0", BumpPatch},
		{"Update README", BumpUnknown},
		{"Bump thing from 2 to 3", BumpUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseVersionBump(tt.title), tt.title)
	}
}

func TestIsDependencyBot(t *testing.T) {
	assert.True(t, IsDependencyBot("dependabot[bot]"))
	assert.True(t, IsDependencyBot("Renovate[bot]"))
	assert.False(t, IsDependencyBot("octocat"))
	assert.False(t, IsDependencyBot(""))
}
