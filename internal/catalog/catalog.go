package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Label is the identifier of a ripeness class as it appears in the label map.
type Label string

const (
	BelumMatang    Label = "belum_matang"
	SetengahMatang Label = "setengah_matang"
	Matang         Label = "matang"
)

var (
	ErrUnknownLabel = errors.New("unknown label")
	ErrEmptyCatalog = errors.New("catalog has no entries")
)

type Entry struct {
	Label       Label  `json:"label" yaml:"label"`
	Description string `json:"description" yaml:"description"`
	Solution    string `json:"solution" yaml:"solution"`
}

// Catalog is an ordered, read-only table of ripeness classes. Build it once at
// start-up and share it; nothing mutates it afterwards.
type Catalog struct {
	entries []Entry
	index   map[Label]int
}

var defaultEntries = []Entry{
	{
		Label:       BelumMatang,
		Description: "Kulit dan tangkai buah masih berwarna hijau, kulit lunak, dan belum siap panen.",
		Solution:    "Tunggu beberapa hari hingga warna kulit menguning dan tekstur mengeras.",
	},
	{
		Label:       SetengahMatang,
		Description: "Buah mulai menguning, masih terlihat garis vertikal warna hijau, tangkai berubah warna menjadi cokelat",
		Solution:    "Biarkan beberapa hari lagi untuk pematangan sempurna atau panen jika dibutuhkan segera.",
	},
	{
		Label:       Matang,
		Description: "Buah sudah berwarna kuning/oranye cerah, Tangkai buah telah mengering berwarna kecoklatan, teksturnya mengeras seperti gabus, dan siap dipanen.",
		Solution:    "Segera panen dan simpan di tempat sejuk agar tidak cepat membusuk.",
	},
}

// Default returns the built-in butternut catalog.
func Default() *Catalog {
	c, err := New(defaultEntries)
	if err != nil {
		panic(err)
	}
	return c
}

func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		entries: make([]Entry, len(entries)),
		index:   make(map[Label]int, len(entries)),
	}
	for i, e := range entries {
		if e.Label == "" {
			return nil, fmt.Errorf("entry %d has an empty label", i)
		}
		if _, ok := c.index[e.Label]; ok {
			return nil, fmt.Errorf("duplicate label %q", e.Label)
		}
		c.entries[i] = e
		c.index[e.Label] = i
	}

	return c, nil
}

type catalogFile struct {
	Labels []Entry `yaml:"labels"`
}

// LoadFile reads a YAML catalog of the form
//
//	labels:
//	  - label: matang
//	    description: ...
//	    solution: ...
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	return New(f.Labels)
}

func (c *Catalog) Describe(label string) (Entry, error) {
	i, ok := c.index[Label(label)]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return c.entries[i], nil
}

func (c *Catalog) Has(label string) bool {
	_, ok := c.index[Label(label)]
	return ok
}

// Keys returns the labels in declaration order. It is the class order used when
// a model ships without a label map.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.entries))
	for i, e := range c.entries {
		keys[i] = string(e.Label)
	}
	return keys
}

func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Catalog) Len() int {
	return len(c.entries)
}
