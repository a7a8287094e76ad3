package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kind string

type srcItem struct {
	Name  string
	Kind  kind
	Extra int
}

type dstItem struct {
	Name string
	Kind string
}

func TestStructAssign(t *testing.T) {
	got, err := StructAssign(&srcItem{Name: "a", Kind: "note", Extra: 3}, &dstItem{})
	require.NoError(t, err)
	assert.Equal(t, &dstItem{Name: "a", Kind: "note"}, got)
}

func TestSliceAssign(t *testing.T) {
	got, err := SliceAssign[srcItem, dstItem]([]srcItem{{Name: "a", Kind: "x"}, {Name: "b"}})
	require.NoError(t, err)
	assert.Equal(t, []dstItem{{Name: "a", Kind: "x"}, {Name: "b"}}, got)

	empty, err := SliceAssign[srcItem, dstItem](nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
