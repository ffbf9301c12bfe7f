package cli

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"ogpimage/internal/config"
	"ogpimage/internal/fetcher"
)

type fontOnlyGetter struct {
	calls atomic.Int32
}

func (g *fontOnlyGetter) Get(ctx context.Context, rawURL, accept string) (fetcher.Result, error) {
	g.calls.Add(1)
	return fetcher.Result{URL: rawURL, StatusCode: 200, Body: goregular.TTF}, nil
}

func testConfig(t *testing.T, store string) func() config.Config {
	dir := t.TempDir()
	return func() config.Config {
		return config.Config{
			Port:        8080,
			Store:       store,
			DBPath:      filepath.Join(dir, "ogpimage.db"),
			DataPath:    dir,
			MetadataTTL: config.GetConfig().MetadataTTL,
		}
	}
}

func run(t *testing.T, opts Options, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	opts.Out = &out
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	root := NewRootCommand(opts)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, Options{}, "version")
	require.NoError(t, err)
	assert.Equal(t, "ogpimage version dev\n", out)
}

func TestRenderWritesPNGAndCaches(t *testing.T) {
	for _, store := range []string{config.StoreSQLite, config.StoreBolt, config.StoreMemory} {
		t.Run(store, func(t *testing.T) {
			getter := &fontOnlyGetter{}
			opts := Options{Getter: getter, Config: testConfig(t, store)}
			file := filepath.Join(t.TempDir(), "tools.png")
			args := []string{"render", "tools", "-p", "cat=dev", "-p", "slug=json", "-p", "title=JSON Formatter", "-o", file}

			out, err := run(t, opts, args...)
			require.NoError(t, err)
			assert.Contains(t, out, "rendered "+file)

			body, err := os.ReadFile(file)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG\r\n\x1a\n")))
			assert.Equal(t, int32(2), getter.calls.Load())

			if store == config.StoreMemory {
				return
			}
			out, err = run(t, opts, args...)
			require.NoError(t, err)
			assert.Contains(t, out, "cached "+file)
			assert.Equal(t, int32(2), getter.calls.Load(), "second run must not refetch")
		})
	}
}

func TestRenderMissingParams(t *testing.T) {
	getter := &fontOnlyGetter{}
	_, err := run(t, Options{Getter: getter, Config: testConfig(t, config.StoreMemory)},
		"render", "tools", "-p", "cat=dev", "-o", filepath.Join(t.TempDir(), "x.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400 Invalid Parameters")
	assert.Zero(t, getter.calls.Load())
}

func TestRenderBlogWithoutAPIKey(t *testing.T) {
	_, err := run(t, Options{Getter: &fontOnlyGetter{}, Config: testConfig(t, config.StoreMemory)},
		"render", "blog", "-p", "slug=hello", "-p", "date=2024-05-01", "-o", filepath.Join(t.TempDir(), "x.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestRenderUnknownSource(t *testing.T) {
	_, err := run(t, Options{Getter: &fontOnlyGetter{}, Config: testConfig(t, config.StoreMemory)}, "render", "nope")
	assert.ErrorContains(t, err, `unknown source "nope"`)
}

func TestParseParams(t *testing.T) {
	q, err := parseParams([]string{"title=a=b", "slug=x"})
	require.NoError(t, err)
	assert.Equal(t, "a=b", q.Get("title"))
	assert.Equal(t, "x", q.Get("slug"))

	_, err = parseParams([]string{"noequals"})
	assert.Error(t, err)
	_, err = parseParams([]string{"=value"})
	assert.Error(t, err)
}

func TestPurge(t *testing.T) {
	out, err := run(t, Options{Config: testConfig(t, config.StoreSQLite)}, "purge")
	require.NoError(t, err)
	assert.Equal(t, "purged 0 entries\n", out)
}

func TestFlagsOverrideConfig(t *testing.T) {
	f := &flags{port: 9000, store: "BBOLT", dataPath: "/tmp/x"}
	cfg := f.apply(config.Config{Port: 8080, Store: config.StoreSQLite, DataPath: "data", DBPath: "data/ogpimage.db"})
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, config.StoreBolt, cfg.Store)
	assert.Equal(t, "/tmp/x", cfg.DataPath)
	assert.Equal(t, "data/ogpimage.db", cfg.DBPath)
}

func TestInvalidStoreIsRejected(t *testing.T) {
	_, err := run(t, Options{Config: testConfig(t, "redis")}, "purge")
	assert.ErrorContains(t, err, "unknown store")
}
