package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw     string
		want    Path
		wantErr bool
	}{
		{raw: "root", want: "root"},
		{raw: "root.acme.west", want: "root.acme.west"},
		{raw: "  root.acme ", want: "root.acme"},
		{raw: "*", want: Global},
		{raw: "", wantErr: true},
		{raw: "root..acme", wantErr: true},
		{raw: "Root.Acme", wantErr: true},
		{raw: ".root", wantErr: true},
		{raw: "root.", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPath_ParentAndDepth(t *testing.T) {
	p := MustParse("root.acme.west")
	assert.Equal(t, 3, p.Depth())
	assert.Equal(t, Path("root.acme"), p.Parent())
	assert.Equal(t, Path("root"), p.Parent().Parent())
	assert.Equal(t, Path(""), p.Parent().Parent().Parent())
	assert.Equal(t, 0, Global.Depth())
}

func TestPath_IsAncestorOf(t *testing.T) {
	assert.True(t, Path("root").IsAncestorOf("root.acme"))
	assert.True(t, Path("root").IsAncestorOf("root.acme.west"))
	assert.False(t, Path("root.acme").IsAncestorOf("root.acme"))
	assert.False(t, Path("root.acme").IsAncestorOf("root"))
	// prefix on the string level but not on the segment level
	assert.False(t, Path("root.ac").IsAncestorOf("root.acme"))
	assert.False(t, Global.IsAncestorOf("root"))
}

func TestContains(t *testing.T) {
	actor := []Path{"root.acme", "root.zenith.north"}

	// equal to one of the actor scopes
	assert.True(t, Contains("root.acme", actor))
	// descendant of one of the actor scopes
	assert.True(t, Contains("root.acme.west.clinic1", actor))
	// ancestor-only (broader) target must be rejected
	assert.False(t, Contains("root", actor))
	assert.False(t, Contains("root.zenith", actor))
	// sibling subtree
	assert.False(t, Contains("root.other", actor))
	// unrestricted marker grants everything
	assert.True(t, Contains("root", []Path{Global}))
	assert.True(t, Contains("anything.at.all", []Path{Global}))
	// no scopes at all
	assert.False(t, Contains("root", nil))
}
