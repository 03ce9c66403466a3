package target

import (
	"bufio"
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"text/template"

	"github.com/google/uuid"
)

// Data is the per-dispatch context made available to URLTemplate and
// BodyTemplate.
type Data struct {
	Seq    uint64
	UUID   string
	UserID string
}

// Engine parses and executes URL/body templates, generalized from the
// teacher's fixed {{userID}}/{{uuid}} substitutions into arbitrary
// text/template records with a small helper funcmap.
type Engine struct {
	fileCache map[string][]string
	mu        sync.RWMutex
	funcMap   template.FuncMap

	cacheMu   sync.Mutex
	parsedURL map[string]*template.Template
	parsedBody map[string]*template.Template
}

// NewEngine builds an Engine with randomInt/randomUUID/randomChoice/
// randomLine available to every template.
func NewEngine() *Engine {
	e := &Engine{
		fileCache:  make(map[string][]string),
		parsedURL:  make(map[string]*template.Template),
		parsedBody: make(map[string]*template.Template),
	}
	e.funcMap = template.FuncMap{
		"randomInt":    e.randomInt,
		"randomUUID":   e.randomUUID,
		"randomChoice": e.randomChoice,
		"randomLine":   e.randomLine,
	}
	return e
}

// Expand returns a clone of t with URLTemplate/BodyTemplate rendered
// against fresh Data, if either is set; otherwise it returns t unchanged
// (no allocation, no templating cost on the common path).
func (e *Engine) Expand(t *Target, data Data) (*Target, error) {
	if t.URLTemplate == "" && t.BodyTemplate == "" {
		return t, nil
	}

	clone := *t
	if t.URLTemplate != "" {
		rendered, err := e.render("url", t.URLTemplate, data)
		if err != nil {
			return nil, fmt.Errorf("expanding url template: %w", err)
		}
		clone.URL = rendered
	}
	if t.BodyTemplate != "" {
		rendered, err := e.render("body", t.BodyTemplate, data)
		if err != nil {
			return nil, fmt.Errorf("expanding body template: %w", err)
		}
		clone.Body = []byte(rendered)
	}
	return &clone, nil
}

func (e *Engine) render(kind, text string, data Data) (string, error) {
	e.cacheMu.Lock()
	cache := e.parsedURL
	if kind == "body" {
		cache = e.parsedBody
	}
	tpl, ok := cache[text]
	if !ok {
		var err error
		tpl, err = template.New(kind).Funcs(e.funcMap).Parse(text)
		if err != nil {
			e.cacheMu.Unlock()
			return "", err
		}
		cache[text] = tpl
	}
	e.cacheMu.Unlock()

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *Engine) randomInt(min, max int) int {
	if max <= min {
		return min
	}
	return rand.Intn(max-min) + min
}

func (e *Engine) randomUUID() string { return uuid.New().String() }

func (e *Engine) randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.Intn(len(choices))]
}

func (e *Engine) randomLine(filename string) (string, error) {
	e.mu.RLock()
	lines, ok := e.fileCache[filename]
	e.mu.RUnlock()
	if ok {
		return pickLine(lines), nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if lines, ok = e.fileCache[filename]; ok {
		return pickLine(lines), nil
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", filename, err)
	}

	var loaded []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			loaded = append(loaded, line)
		}
	}
	e.fileCache[filename] = loaded
	return pickLine(loaded), nil
}

func pickLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[rand.Intn(len(lines))]
}
