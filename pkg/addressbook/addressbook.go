// Package addressbook loads locally saved account names.
package addressbook

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one saved address.
type Entry struct {
	Address string `yaml:"address" json:"address"`
	Name    string `yaml:"name" json:"name"`
}

type file struct {
	Addresses []Entry `yaml:"addresses"`
}

// Book maps addresses to saved names. The zero value is an empty book.
type Book struct {
	entries []Entry
	names   map[string]string
}

// New builds a book from entries. Later duplicates of an address win.
func New(entries ...Entry) *Book {
	b := &Book{names: make(map[string]string, len(entries))}
	for _, e := range entries {
		addr := strings.TrimSpace(e.Address)
		if addr == "" {
			continue
		}
		if _, seen := b.names[addr]; !seen {
			b.entries = append(b.entries, Entry{Address: addr, Name: e.Name})
		} else {
			for i := range b.entries {
				if b.entries[i].Address == addr {
					b.entries[i].Name = e.Name
				}
			}
		}
		b.names[addr] = e.Name
	}
	return b
}

// Load reads a YAML address book. A missing file yields an empty book.
func Load(path string) (*Book, error) {
	if path == "" {
		return New(), nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read address book: %w", err)
	}
	return Parse(raw)
}

// Parse decodes the YAML form `addresses: [{address, name}]`.
func Parse(raw []byte) (*Book, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse address book: %w", err)
	}
	return New(f.Addresses...), nil
}

// Name returns the saved name for address.
func (b *Book) Name(address string) (string, bool) {
	if b == nil {
		return "", false
	}
	name, ok := b.names[address]
	return name, ok
}

// Entries returns the saved addresses in file order.
func (b *Book) Entries() []Entry {
	if b == nil {
		return nil
	}
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}
