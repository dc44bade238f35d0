package sitebuild_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonesrussell/linkbio/internal/sitebuild"
	infralogger "github.com/jonesrussell/linkbio/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIndex = `<!doctype html>
<html>
<head><script src="https://cdn.example.com/lib.js"></script></head>
<body>
<script src="analytics.js"></script>
<script defer src="script.js"></script>
<script src="app.js?v=1"></script>
</body>
</html>`

func writeSource(t *testing.T) string {
	t.Helper()

	src := t.TempDir()
	files := map[string]string{
		"index.html":     testIndex,
		"analytics.js":   `const URL = "SUPABASE_URL_PLACEHOLDER"; const KEY = "SUPABASE_ANON_KEY_PLACEHOLDER";`,
		"dashboard.js":   `const K = "SUPABASE_KEY_PLACEHOLDER"; const E = "ALLOWED_EMAIL_PLACEHOLDER";`,
		"styles.css":     `body { color: #111; }`,
		"img/avatar.svg": `<svg/>`,
		".env":           `SECRET=1`,
	}
	for name, content := range files {
		path := filepath.Join(src, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return src
}

func testConfig(src, out string) sitebuild.Config {
	return sitebuild.Config{
		SourceDir:       src,
		OutDir:          out,
		SupabaseURL:     "https://abc.supabase.co",
		SupabaseAnonKey: "anon-key",
		Version:         "42",
	}
}

func readOut(t *testing.T, out, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(out, name))
	require.NoError(t, err)
	return string(data)
}

func TestBuild(t *testing.T) {
	t.Parallel()

	src := writeSource(t)
	out := filepath.Join(t.TempDir(), "dist")

	res, err := sitebuild.NewBuilder(testConfig(src, out), infralogger.NewNop()).Build()
	require.NoError(t, err)
	assert.Equal(t, "42", res.Version)

	analytics := readOut(t, out, "analytics.js")
	assert.Contains(t, analytics, `"https://abc.supabase.co"`)
	assert.Contains(t, analytics, `"anon-key"`)
	assert.NotContains(t, analytics, "PLACEHOLDER")

	// without an allowed email the dashboard stays locked
	dashboard := readOut(t, out, "dashboard.js")
	assert.Contains(t, dashboard, `"anon-key"`)
	assert.Contains(t, dashboard, sitebuild.PlaceholderAllowedEmail)

	index := readOut(t, out, "index.html")
	assert.Contains(t, index, `<script src="analytics.js?v=42"></script>`)
	assert.Contains(t, index, `<script defer src="script.js?v=42"></script>`)
	assert.Contains(t, index, `<script src="https://cdn.example.com/lib.js"></script>`)
	assert.Contains(t, index, `<script src="app.js?v=1"></script>`)

	assert.Equal(t, "<svg/>", readOut(t, out, "img/avatar.svg"))
	assert.Contains(t, readOut(t, out, "_redirects"), "/*  /index.html  200")
	assert.Contains(t, readOut(t, out, "_headers"), "application/javascript")
	assert.NoFileExists(t, filepath.Join(out, ".env"))

	actions := map[string]string{}
	for _, f := range res.Files {
		actions[f.Path] = f.Action
	}
	assert.Equal(t, sitebuild.ActionSubstituted, actions["analytics.js"])
	assert.Equal(t, sitebuild.ActionCacheBusted, actions["index.html"])
	assert.Equal(t, sitebuild.ActionCopied, actions["styles.css"])
	assert.Equal(t, sitebuild.ActionGenerated, actions["_headers"])
}

func TestBuild_AllowedEmail(t *testing.T) {
	t.Parallel()

	src := writeSource(t)
	out := filepath.Join(t.TempDir(), "dist")
	cfg := testConfig(src, out)
	cfg.AllowedEmail = "owner@example.com"

	_, err := sitebuild.NewBuilder(cfg, infralogger.NewNop()).Build()
	require.NoError(t, err)
	assert.Contains(t, readOut(t, out, "dashboard.js"), `"owner@example.com"`)
}

func TestBuild_RemovesStaleOutput(t *testing.T) {
	t.Parallel()

	src := writeSource(t)
	out := filepath.Join(t.TempDir(), "dist")
	require.NoError(t, os.MkdirAll(out, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "old.js"), []byte("x"), 0o644))

	_, err := sitebuild.NewBuilder(testConfig(src, out), infralogger.NewNop()).Build()
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(out, "old.js"))
}

func TestBuild_OutputInsideSource(t *testing.T) {
	t.Parallel()

	src := writeSource(t)
	out := filepath.Join(src, "dist")
	b := sitebuild.NewBuilder(testConfig(src, out), infralogger.NewNop())

	_, err := b.Build()
	require.NoError(t, err)
	_, err = b.Build()
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(out, "dist"))
}

func TestBuild_RequiresCredentials(t *testing.T) {
	t.Parallel()

	cfg := testConfig(writeSource(t), filepath.Join(t.TempDir(), "dist"))
	cfg.SupabaseAnonKey = ""

	_, err := sitebuild.NewBuilder(cfg, infralogger.NewNop()).Build()
	require.ErrorIs(t, err, sitebuild.ErrMissingCredentials)
}

func TestCacheBust(t *testing.T) {
	t.Parallel()

	out, n := sitebuild.CacheBust(testIndex, "7")
	assert.Equal(t, 2, n)
	assert.Contains(t, out, `src="analytics.js?v=7"`)

	out, n = sitebuild.CacheBust(`<p>no scripts</p>`, "7")
	assert.Zero(t, n)
	assert.Equal(t, `<p>no scripts</p>`, out)
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sitebuild.RenderSummary(&buf, &sitebuild.Result{
		Version: "42",
		Files: []sitebuild.FileResult{
			{Path: "analytics.js", Action: sitebuild.ActionSubstituted, Bytes: 10, Replacements: 2},
		},
	})
	assert.Contains(t, buf.String(), "analytics.js")
	assert.Contains(t, buf.String(), sitebuild.ActionSubstituted)
	assert.Contains(t, buf.String(), "Build 42")
}

func TestWatch_RebuildsOnChange(t *testing.T) {
	t.Parallel()

	src := writeSource(t)
	out := filepath.Join(t.TempDir(), "dist")
	b := sitebuild.NewBuilder(testConfig(src, out), infralogger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	builds := make(chan error, 8)
	done := make(chan error, 1)
	go func() {
		done <- b.Watch(ctx, 20*time.Millisecond, func(_ *sitebuild.Result, err error) { builds <- err })
	}()

	select {
	case err := <-builds:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("initial build did not run")
	}

	require.NoError(t, os.WriteFile(filepath.Join(src, "styles.css"), []byte("body { color: red; }"), 0o644))

	select {
	case err := <-builds:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("rebuild did not run")
	}
	assert.Equal(t, "body { color: red; }", readOut(t, out, "styles.css"))

	cancel()
	require.NoError(t, <-done)
}
