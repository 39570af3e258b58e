// Package fontprovider loads TrueType fonts from a directory and hands out sized faces for text watermarks
package fontprovider

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// DefaultName - имя встроенного шрифта Go Regular, доступен всегда
const DefaultName = "default"

var ErrFontNotFound = errors.New("font not found")

type Provider struct {
	mu    sync.Mutex
	paths map[string]string // имя -> путь к файлу
	fonts map[string]*truetype.Font
}

// New scans dir for *.ttf files. An empty dir gives a provider with the embedded font only.
func New(dir string) (*Provider, error) {
	p := &Provider{
		paths: make(map[string]string),
		fonts: make(map[string]*truetype.Font),
	}

	def, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse embedded font: %w", err)
	}
	p.fonts[DefaultName] = def

	if dir == "" {
		return p, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fonts dir %q: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".ttf") {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if name == DefaultName {
			continue
		}
		p.paths[name] = filepath.Join(dir, e.Name())
	}

	return p, nil
}

// Names returns all font names sorted, DefaultName included.
func (p *Provider) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.paths)+1)
	names = append(names, DefaultName)
	for n := range p.paths {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Face returns a new face for the font at the given pixel size (72 DPI, so points equal pixels).
// Parsed fonts are cached, faces are not: a truetype face keeps a glyph buffer and must not be
// shared between goroutines.
func (p *Provider) Face(name string, size float64) (font.Face, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultName
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ttf, err := p.loadLocked(name)
	if err != nil {
		return nil, err
	}

	return truetype.NewFace(ttf, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}

func (p *Provider) loadLocked(name string) (*truetype.Font, error) {
	if f, ok := p.fonts[name]; ok {
		return f, nil
	}

	path, ok := p.paths[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFontNotFound, name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %q: %w", path, err)
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %q: %w", path, err)
	}
	p.fonts[name] = f
	return f, nil
}
