package loader

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/Carmen-Shannon/oxy-models/engine/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reloadResult struct {
	model model.Model
	err   error
}

func TestWatcherReloadsOnDependencyChange(t *testing.T) {
	path := cubeFixture(t)
	_, l := newTestLoader(t)

	results := make(chan reloadResult, 8)
	w, err := NewWatcher(l, path, func(m model.Model, err error) {
		results <- reloadResult{model: m, err: err}
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	first := waitReload(t, results)
	require.NoError(t, first.err)
	defer first.model.Release()
	assert.Contains(t, w.Tracked(), filepath.Join(filepath.Dir(path), "cube.mtl"))

	mtlPath := filepath.Join(filepath.Dir(path), "cube.mtl")
	require.NoError(t, os.WriteFile(mtlPath, []byte(cubeMTL+"Ns 10\n"), 0o644))

	second := waitReload(t, results)
	require.NoError(t, second.err)
	defer second.model.Release()
	assert.NotEqual(t, first.model.ID(), second.model.ID())
	assert.Equal(t, float32(10), second.model.Materials()[0].Properties().Shininess)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherReportsFailedLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.obj")
	_, l := newTestLoader(t)

	results := make(chan reloadResult, 1)
	w, err := NewWatcher(l, path, func(m model.Model, err error) {
		results <- reloadResult{model: m, err: err}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	res := waitReload(t, results)
	assert.Nil(t, res.model)
	assert.True(t, IsNotFound(res.err))
	assert.Equal(t, []string{path}, w.Tracked())
}

func TestWatcherRecoversWhenMissingTextureAppears(t *testing.T) {
	dir := writeFixture(t, map[string][]byte{
		"cube.obj":    []byte(cubeOBJ),
		"cube.mtl":    []byte(cubeMTL),
		"diffuse.png": encodePNG(t, color.RGBA{R: 200, G: 100, B: 50, A: 255}),
	})
	path := filepath.Join(dir, "cube.obj")
	normalPath := filepath.Join(dir, "normal.png")
	_, l := newTestLoader(t)

	results := make(chan reloadResult, 8)
	w, err := NewWatcher(l, path, func(m model.Model, err error) {
		results <- reloadResult{model: m, err: err}
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	first := waitReload(t, results)
	require.Error(t, first.err)
	assert.True(t, IsNotFound(first.err))
	assert.ElementsMatch(t, []string{path, normalPath}, w.Tracked())

	require.NoError(t, os.WriteFile(normalPath, encodePNG(t, color.RGBA{R: 128, G: 128, B: 255, A: 255}), 0o644))

	second := waitReload(t, results)
	require.NoError(t, second.err)
	defer second.model.Release()
	assert.Contains(t, w.Tracked(), filepath.Join(dir, "cube.mtl"))
	assert.Contains(t, w.Tracked(), normalPath)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestFailedFile(t *testing.T) {
	assert.Equal(t, "/a/normal.png", failedFile(fmt.Errorf("load: %w", &common.TextureLoadError{Path: "/a/normal.png", Err: os.ErrNotExist})))
	assert.Equal(t, "/a/cube.mtl", failedFile(&common.AssetParseError{Path: "/a/cube.mtl", Line: 3, Err: errors.New("bad")}))
	assert.Empty(t, failedFile(&common.TextureLoadError{Path: "embedded:albedo", Err: errors.New("bad")}))
	assert.Empty(t, failedFile(context.Canceled))
}

func waitReload(t *testing.T, results <-chan reloadResult) reloadResult {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
		return reloadResult{}
	}
}
