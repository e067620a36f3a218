// Package uninstall enumerates the Windows uninstall registry subtrees and
// decodes their values into per-entry property maps.
package uninstall

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-tangra/go-tangra-sbom/internal/logging"
	"github.com/go-tangra/go-tangra-sbom/internal/winapi"
)

var log = logging.L("uninstall")

// Uninstall subtrees below HKLM (and optionally HKCU).
const (
	NativePath = `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`
	WowPath    = `SOFTWARE\Wow6432Node\Microsoft\Windows\CurrentVersion\Uninstall`
)

// Registry value types, as stored in the registry.
const (
	typeSZ       = 1
	typeExpandSZ = 2
	typeBinary   = 3
	typeDWORD    = 4
	typeMultiSZ  = 7
)

// ErrKeyNotFound is returned by a Hive or Key when the requested key does
// not exist.
var ErrKeyNotFound = errors.New("registry key not found")

// Key is an open registry key.
type Key interface {
	SubKeyNames() ([]string, error)
	OpenSubKey(name string) (Key, error)
	ModTime() (time.Time, error)
	ValueNames() ([]string, error)
	// Value returns the raw bytes and native type of the named value.
	Value(name string) ([]byte, uint32, error)
	Close() error
}

// Hive opens keys below a predefined root such as HKEY_LOCAL_MACHINE.
type Hive interface {
	Name() string
	OpenKey(path string) (Key, error)
}

// Root is one uninstall subtree to enumerate.
type Root struct {
	Hive Hive
	Path string
}

func (r Root) String() string {
	return r.Hive.Name() + `\` + r.Path
}

// Entry is one uninstall subkey with its values decoded to text.
type Entry struct {
	KeyName    string            `json:"key_name"`
	Root       string            `json:"root"`
	Modified   time.Time         `json:"modified"`
	Properties map[string]string `json:"properties"`
}

// RegistryError reports an uninstall root that could not be enumerated.
type RegistryError struct {
	KeyPath string
	Err     error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry %s: %v", e.KeyPath, e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }

// DecodeValue renders a raw registry value as text. String types are UTF-16
// decoded with trailing NULs removed. Multi-strings have their separators
// replaced by newlines. Any other type is rendered as its raw byte list.
func DecodeValue(valType uint32, data []byte) string {
	switch valType {
	case typeSZ, typeExpandSZ:
		return winapi.DecodeBytes(data)
	case typeMultiSZ:
		return strings.ReplaceAll(winapi.DecodeBytes(data), "\x00", "\n")
	default:
		return fmt.Sprint(data)
	}
}

// Reader enumerates uninstall entries across a set of roots.
type Reader struct {
	Roots []Root
}

// Entries returns one Entry per immediate subkey of every root, roots in
// order and subkeys as the registry lists them. A root that does not exist
// contributes nothing. Subkeys and values that cannot be read are skipped.
func (r *Reader) Entries(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	for _, root := range r.Roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		got, err := readRoot(ctx, root)
		if err != nil {
			return nil, err
		}
		log.Debug("root enumerated", "root", root.String(), logging.KeyCount, len(got))
		entries = append(entries, got...)
	}
	return entries, nil
}

func readRoot(ctx context.Context, root Root) ([]Entry, error) {
	key, err := root.Hive.OpenKey(root.Path)
	if errors.Is(err, ErrKeyNotFound) {
		log.Debug("root absent", "root", root.String())
		return nil, nil
	}
	if err != nil {
		return nil, &RegistryError{KeyPath: root.String(), Err: err}
	}
	defer key.Close()

	names, err := key.SubKeyNames()
	if err != nil {
		return nil, &RegistryError{KeyPath: root.String(), Err: fmt.Errorf("list subkeys: %w", err)}
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, err := readEntry(key, root, name)
		if err != nil {
			log.Warn("skipping uninstall entry", "root", root.String(), "key", name, logging.KeyError, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func readEntry(parent Key, root Root, name string) (Entry, error) {
	sub, err := parent.OpenSubKey(name)
	if err != nil {
		return Entry{}, fmt.Errorf("open: %w", err)
	}
	defer sub.Close()

	modified, err := sub.ModTime()
	if err != nil {
		return Entry{}, fmt.Errorf("stat: %w", err)
	}

	valueNames, err := sub.ValueNames()
	if err != nil {
		return Entry{}, fmt.Errorf("list values: %w", err)
	}

	props := make(map[string]string, len(valueNames))
	for _, vn := range valueNames {
		data, valType, err := sub.Value(vn)
		if err != nil {
			log.Debug("value unreadable", "key", name, "value", vn, logging.KeyError, err)
			continue
		}
		props[vn] = DecodeValue(valType, data)
	}

	return Entry{
		KeyName:    name,
		Root:       root.String(),
		Modified:   modified.UTC(),
		Properties: props,
	}, nil
}
