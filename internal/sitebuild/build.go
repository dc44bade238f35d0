// Package sitebuild produces the deployable static site: credentials are
// substituted into the scripts, script tags are cache-busted and the Netlify
// routing files are generated.
package sitebuild

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	infralogger "github.com/jonesrussell/linkbio/infrastructure/logger"
)

// Placeholders substituted into .js files.
const (
	PlaceholderURL          = "SUPABASE_URL_PLACEHOLDER"
	PlaceholderAnonKey      = "SUPABASE_ANON_KEY_PLACEHOLDER"
	PlaceholderKey          = "SUPABASE_KEY_PLACEHOLDER"
	PlaceholderAllowedEmail = "ALLOWED_EMAIL_PLACEHOLDER"
)

// File actions reported in a Result.
const (
	ActionSubstituted = "substituted"
	ActionCacheBusted = "cache-busted"
	ActionCopied      = "copied"
	ActionGenerated   = "generated"
)

const (
	indexFile     = "index.html"
	redirectsFile = "_redirects"
	headersFile   = "_headers"
	dirPerm       = 0o755
	filePerm      = 0o644
)

// ErrMissingCredentials is returned when the remote sink URL or key is unset.
var ErrMissingCredentials = errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required")

// scriptSrc matches local script tags that are not already versioned.
var scriptSrc = regexp.MustCompile(`(<script\b[^>]*\bsrc=")([^":?#]+\.js)(")`)

const redirects = `# SPA routing
/*  /index.html  200
`

const headers = `/*
  X-Frame-Options: DENY
  X-Content-Type-Options: nosniff
  Referrer-Policy: strict-origin-when-cross-origin

/*.js
  Content-Type: application/javascript; charset=utf-8
  Cache-Control: public, max-age=31536000, immutable

/*.css
  Content-Type: text/css; charset=utf-8
  Cache-Control: public, max-age=31536000, immutable

/*.html
  Content-Type: text/html; charset=utf-8
  Cache-Control: public, max-age=0, must-revalidate
`

// Config configures a build.
type Config struct {
	SourceDir       string
	OutDir          string
	SupabaseURL     string
	SupabaseAnonKey string
	// AllowedEmail is substituted only when set; otherwise the dashboard
	// keeps its placeholder and stays locked.
	AllowedEmail string
	// Version is appended to script URLs. Defaults to the build time in
	// milliseconds.
	Version string
}

// ConfigFromEnv reads the credentials from the environment.
func ConfigFromEnv(sourceDir, outDir string) Config {
	return Config{
		SourceDir:       sourceDir,
		OutDir:          outDir,
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey: os.Getenv("SUPABASE_ANON_KEY"),
		AllowedEmail:    os.Getenv("ALLOWED_EMAIL"),
	}
}

// Validate checks the credentials and directories.
func (c Config) Validate() error {
	if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
		return ErrMissingCredentials
	}
	if c.SourceDir == "" || c.OutDir == "" {
		return errors.New("source and output directories are required")
	}
	src, err := filepath.Abs(c.SourceDir)
	if err != nil {
		return fmt.Errorf("resolve source dir: %w", err)
	}
	out, err := filepath.Abs(c.OutDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	if src == out {
		return errors.New("output directory must differ from source directory")
	}
	return nil
}

// FileResult describes one written file.
type FileResult struct {
	Path         string
	Action       string
	Bytes        int
	Replacements int
}

// Result summarizes a build.
type Result struct {
	Version  string
	Files    []FileResult
	Duration time.Duration
}

// Builder rebuilds the output directory from the source directory.
type Builder struct {
	cfg    Config
	logger infralogger.Logger
	now    func() time.Time
}

// NewBuilder creates a Builder.
func NewBuilder(cfg Config, log infralogger.Logger) *Builder {
	return &Builder{cfg: cfg, logger: log, now: time.Now}
}

// Build wipes the output directory and writes a fresh site into it.
func (b *Builder) Build() (*Result, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	start := b.now()
	version := b.cfg.Version
	if version == "" {
		version = strconv.FormatInt(start.UnixMilli(), 10)
	}

	if err := os.RemoveAll(b.cfg.OutDir); err != nil {
		return nil, fmt.Errorf("clean output dir: %w", err)
	}
	if err := os.MkdirAll(b.cfg.OutDir, dirPerm); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	res := &Result{Version: version}
	outAbs, _ := filepath.Abs(b.cfg.OutDir)

	err := filepath.WalkDir(b.cfg.SourceDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(b.cfg.SourceDir, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			return b.visitDir(path, rel, outAbs)
		}
		if skipFile(rel) {
			return nil
		}

		fr, err := b.writeFile(path, rel, version)
		if err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		res.Files = append(res.Files, fr)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build site: %w", err)
	}

	generated := []struct{ name, content string }{
		{redirectsFile, redirects},
		{headersFile, headers},
	}
	for _, g := range generated {
		if err = os.WriteFile(filepath.Join(b.cfg.OutDir, g.name), []byte(g.content), filePerm); err != nil {
			return nil, fmt.Errorf("write %s: %w", g.name, err)
		}
		res.Files = append(res.Files, FileResult{Path: g.name, Action: ActionGenerated, Bytes: len(g.content)})
	}

	res.Duration = b.now().Sub(start)
	b.logger.Info("Site built",
		infralogger.String("version", version),
		infralogger.Int("files", len(res.Files)),
		infralogger.Duration("duration", res.Duration),
	)
	return res, nil
}

// visitDir skips hidden directories and the output directory, and mirrors
// the rest.
func (b *Builder) visitDir(path, rel string, outAbs string) error {
	if rel == "." {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if abs == outAbs || strings.HasPrefix(filepath.Base(rel), ".") || filepath.Base(rel) == "node_modules" {
		return filepath.SkipDir
	}
	return os.MkdirAll(filepath.Join(b.cfg.OutDir, rel), dirPerm)
}

func skipFile(rel string) bool {
	base := filepath.Base(rel)
	return strings.HasPrefix(base, ".") || base == redirectsFile || base == headersFile
}

func (b *Builder) writeFile(path, rel, version string) (FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, err
	}

	fr := FileResult{Path: filepath.ToSlash(rel), Action: ActionCopied}
	content := string(data)

	switch {
	case strings.HasSuffix(rel, ".js"):
		content, fr.Replacements = b.substitute(content)
		if fr.Replacements > 0 {
			fr.Action = ActionSubstituted
		}
	case filepath.Base(rel) == indexFile:
		content, fr.Replacements = CacheBust(content, version)
		if fr.Replacements > 0 {
			fr.Action = ActionCacheBusted
		}
	}

	fr.Bytes = len(content)
	if err = os.WriteFile(filepath.Join(b.cfg.OutDir, rel), []byte(content), filePerm); err != nil {
		return FileResult{}, err
	}
	return fr, nil
}

func (b *Builder) substitute(content string) (string, int) {
	pairs := []string{
		PlaceholderURL, b.cfg.SupabaseURL,
		PlaceholderAnonKey, b.cfg.SupabaseAnonKey,
		PlaceholderKey, b.cfg.SupabaseAnonKey,
	}
	if b.cfg.AllowedEmail != "" {
		pairs = append(pairs, PlaceholderAllowedEmail, b.cfg.AllowedEmail)
	}

	n := 0
	for i := 0; i < len(pairs); i += 2 {
		n += strings.Count(content, pairs[i])
	}
	return strings.NewReplacer(pairs...).Replace(content), n
}

// CacheBust appends ?v=version to every local script src in html and
// returns the number of tags rewritten. Absolute and already versioned URLs
// are left alone.
func CacheBust(html, version string) (string, int) {
	n := 0
	out := scriptSrc.ReplaceAllStringFunc(html, func(tag string) string {
		n++
		m := scriptSrc.FindStringSubmatch(tag)
		return m[1] + m[2] + "?v=" + version + m[3]
	})
	return out, n
}
