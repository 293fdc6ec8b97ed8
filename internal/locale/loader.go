// Package locale loads the localized text bundles used for user-facing
// messages, export headers and profile defaults.
package locale

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/circademic/gradetrack/internal/apperr"
)

//go:embed bundles/*.yaml
var builtin embed.FS

// Bundle holds the text of one language
type Bundle struct {
	Code            string
	Name            string
	Tag             language.Tag
	FallbackMessage string
	Messages        map[string]string
	Notices         map[string]string
	CSVHeaders      []string
	Categories      []string
	YearLabels      []string
	SemesterLabel   string
	SummaryLabels   map[string]string
}

// Message returns the localized text for code, or the generic fallback
func (b *Bundle) Message(code apperr.Code) string {
	if msg, ok := b.Messages[string(code)]; ok {
		return msg
	}
	return b.FallbackMessage
}

// Notice returns the localized success notice for key, key itself if unknown
func (b *Bundle) Notice(key string) string {
	if msg, ok := b.Notices[key]; ok {
		return msg
	}
	return key
}

// Semester renders the label of a semester number
func (b *Bundle) Semester(n int) string {
	if b.SemesterLabel == "" {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf(b.SemesterLabel, n)
}

// Loader manages loading and caching of locale bundles
type Loader struct {
	mu          sync.RWMutex
	bundles     map[string]*Bundle
	defaultCode string
	matcher     language.Matcher
	order       []string
}

// NewLoader creates a loader holding the built-in bundles
func NewLoader(defaultCode string) (*Loader, error) {
	l := &Loader{
		bundles:     make(map[string]*Bundle),
		defaultCode: defaultCode,
	}
	if err := l.LoadFS(builtin, "bundles"); err != nil {
		return nil, fmt.Errorf("failed to load built-in bundles: %w", err)
	}
	if l.Get(defaultCode) == nil {
		return nil, fmt.Errorf("default locale %q is not available", defaultCode)
	}
	return l, nil
}

// LoadFromDir loads YAML bundles from dir, replacing built-in bundles of
// the same code.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading locale bundles from directory", "dir", dir)
	return l.LoadFS(os.DirFS(dir), ".")
}

// LoadFS loads every *.yaml / *.yml bundle under root in fsys
func (l *Loader) LoadFS(fsys fs.FS, root string) error {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := fs.Glob(fsys, filepath.ToSlash(filepath.Join(root, pattern)))
		if err != nil {
			return fmt.Errorf("failed to list bundles: %w", err)
		}
		files = append(files, matches...)
	}

	loaded := 0
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			slog.Warn("failed to read locale bundle", "file", file, "error", err)
			continue
		}
		if err := l.Add(data); err != nil {
			slog.Warn("failed to load locale bundle", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Debug("locale bundles loaded", "count", loaded, "total_files", len(files))
	return nil
}

// Add parses a YAML bundle and registers it under its code
func (l *Loader) Add(data []byte) error {
	var bf bundleFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Validate required fields
	if bf.Code == "" {
		return fmt.Errorf("bundle code is required")
	}
	tag, err := language.Parse(bf.Code)
	if err != nil {
		return fmt.Errorf("invalid bundle code %q: %w", bf.Code, err)
	}
	if bf.FallbackMessage == "" {
		return fmt.Errorf("fallback_message is required")
	}
	if len(bf.Categories) == 0 {
		return fmt.Errorf("categories are required")
	}

	bundle := &Bundle{
		Code:            bf.Code,
		Name:            bf.Name,
		Tag:             tag,
		FallbackMessage: bf.FallbackMessage,
		Messages:        bf.Messages,
		Notices:         bf.Notices,
		CSVHeaders:      bf.CSVHeaders,
		Categories:      bf.Categories,
		YearLabels:      bf.YearLabels,
		SemesterLabel:   bf.SemesterLabel,
		SummaryLabels:   bf.SummaryLabels,
	}
	if bundle.Messages == nil {
		bundle.Messages = map[string]string{}
	}
	if bundle.Notices == nil {
		bundle.Notices = map[string]string{}
	}

	l.mu.Lock()
	l.bundles[bf.Code] = bundle
	l.rebuildMatcher()
	l.mu.Unlock()

	slog.Debug("locale bundle loaded", "code", bf.Code, "messages", len(bf.Messages))
	return nil
}

// rebuildMatcher must be called with mu held. The default bundle comes
// first so it wins when nothing matches.
func (l *Loader) rebuildMatcher() {
	codes := make([]string, 0, len(l.bundles))
	for code := range l.bundles {
		if code != l.defaultCode {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	if _, ok := l.bundles[l.defaultCode]; ok {
		codes = append([]string{l.defaultCode}, codes...)
	}

	tags := make([]language.Tag, len(codes))
	for i, code := range codes {
		tags[i] = l.bundles[code].Tag
	}
	l.order = codes
	l.matcher = language.NewMatcher(tags)
}

// Get retrieves a bundle by code
func (l *Loader) Get(code string) *Bundle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bundles[code]
}

// Default returns the bundle used when nothing else matches
func (l *Loader) Default() *Bundle {
	return l.Get(l.defaultCode)
}

// List returns the codes of all loaded bundles
func (l *Loader) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.order...)
}

// Match picks the bundle best matching an Accept-Language header value or
// a plain code.
func (l *Loader) Match(acceptLanguage string) *Bundle {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return l.Default()
	}
	if b := l.Get(acceptLanguage); b != nil {
		return b
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return l.Default()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	_, index, confidence := l.matcher.Match(tags...)
	if confidence == language.No || index >= len(l.order) {
		return l.bundles[l.defaultCode]
	}
	return l.bundles[l.order[index]]
}

// bundleFile represents the YAML structure of a bundle file
type bundleFile struct {
	Code            string            `yaml:"code"`
	Name            string            `yaml:"name"`
	FallbackMessage string            `yaml:"fallback_message"`
	Messages        map[string]string `yaml:"messages"`
	Notices         map[string]string `yaml:"notices"`
	CSVHeaders      []string          `yaml:"csv_headers"`
	Categories      []string          `yaml:"categories"`
	YearLabels      []string          `yaml:"year_labels"`
	SemesterLabel   string            `yaml:"semester_label"`
	SummaryLabels   map[string]string `yaml:"summary_labels"`
}
