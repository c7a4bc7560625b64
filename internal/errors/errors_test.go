package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	ee := NewBuilder(fmt.Errorf("boom")).Build()

	assert.Equal(t, "boom", ee.GetError().Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryUnknown, ee.GetCategory())
	assert.False(t, ee.IsReported())
}

func TestBuilderChain(t *testing.T) {
	t.Parallel()

	ee := NewBuilder(fmt.Errorf("dial failed")).
		Component("resource").
		Category(CategoryNetwork).
		Context("source", "api:p1").
		Build()

	assert.Equal(t, Component("resource"), ee.GetComponent())
	assert.Equal(t, CategoryNetwork, ee.GetCategory())
	assert.Equal(t, "api:p1", ee.GetContext()["source"])
	assert.Contains(t, ee.Error(), "resource")
	assert.Contains(t, ee.Error(), "network")
}

func TestNewfFormats(t *testing.T) {
	t.Parallel()

	ee := Newf("failed to fetch id=%d", 42).Category(CategoryUpstreamSchema).Build()
	assert.Contains(t, ee.Error(), "id=42")
}

func TestMarkReported(t *testing.T) {
	t.Parallel()

	ee := NewBuilder(fmt.Errorf("x")).Build()
	require.False(t, ee.IsReported())
	ee.MarkReported()
	assert.True(t, ee.IsReported())
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("underlying")
	ee := NewBuilder(base).Build()
	assert.ErrorIs(t, ee, base)
}
