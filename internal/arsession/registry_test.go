package arsession

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ar-tryon/internal/camera"
)

func TestRegistryOneSessionPerView(t *testing.T) {
	dev := &camera.SyntheticDevice{}
	r := NewRegistry(Options{Device: dev})
	defer r.CloseAll()

	first := r.Open("gallery", painting(t), camera.FacingEnvironment, viewport)
	_, err := first.StartCamera(context.Background())
	require.NoError(t, err)

	second := r.Open("gallery", painting(t), camera.FacingEnvironment, viewport)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.Closed())
	assert.Equal(t, 0, dev.LiveTracks())
	assert.Equal(t, 1, r.Len())

	_, err = r.Get(first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := r.Get(second.ID)
	require.NoError(t, err)
	assert.Same(t, second, got)

	other := r.Open("detail", painting(t), camera.FacingUser, viewport)
	assert.Equal(t, 2, r.Len())
	assert.False(t, second.Closed())

	require.NoError(t, r.Close(other.ID))
	assert.True(t, other.Closed())
	assert.ErrorIs(t, r.Close(other.ID), ErrNotFound)
}

func TestRegistryCloseAll(t *testing.T) {
	dev := &camera.SyntheticDevice{}
	r := NewRegistry(Options{Device: dev})
	a := r.Open("a", painting(t), camera.FacingEnvironment, viewport)
	b := r.Open("b", painting(t), camera.FacingUser, viewport)
	_, err := a.StartCamera(context.Background())
	require.NoError(t, err)
	_, err = b.StartCamera(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, dev.LiveTracks())

	r.CloseAll()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, dev.LiveTracks())
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}

func TestRegistryOnRemove(t *testing.T) {
	r := NewRegistry(Options{Device: &camera.SyntheticDevice{}})
	var removed []string
	r.OnRemove(func(id string) { removed = append(removed, id) })

	first := r.Open("gallery", painting(t), camera.FacingEnvironment, viewport)
	second := r.Open("gallery", painting(t), camera.FacingEnvironment, viewport)
	assert.Equal(t, []string{first.ID}, removed)

	require.NoError(t, r.Close(second.ID))
	assert.Equal(t, []string{first.ID, second.ID}, removed)

	third := r.Open("detail", painting(t), camera.FacingUser, viewport)
	r.CloseAll()
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, removed)

	assert.ErrorIs(t, r.Close(third.ID), ErrNotFound)
	assert.Len(t, removed, 3)
}
