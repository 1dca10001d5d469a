package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeExt(t *testing.T) {
	assert.Equal(t, "png", NormalizeExt(".PNG"))
	assert.Equal(t, "jpeg", NormalizeExt("jpeg"))
	assert.Equal(t, "", NormalizeExt("."))
}

func TestMapExtToFormat(t *testing.T) {
	tests := []struct {
		ext    string
		format string
	}{
		{".pdf", PDF},
		{"PDF", PDF},
		{".jpg", IMAGE},
		{"jpeg", IMAGE},
		{".PNG", IMAGE},
		{"gif", IMAGE},
		{".heic", IMAGE},
		{"heif", IMAGE},
		{".exe", ""},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.format, MapExtToFormat(tc.ext), tc.ext)
	}
}

func TestIsHEICExt(t *testing.T) {
	assert.True(t, IsHEICExt(".heic"))
	assert.True(t, IsHEICExt("HEIF"))
	assert.False(t, IsHEICExt(".png"))
}

func TestAllowedExtensionsCoverEveryFormat(t *testing.T) {
	for ext := range AllowedExtensions {
		assert.NotEmpty(t, MapExtToFormat(ext), ext)
	}
}
