//go:build windows

package uninstall

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

// LocalMachine is HKEY_LOCAL_MACHINE.
func LocalMachine() Hive { return nativeHive{name: "HKLM", key: registry.LOCAL_MACHINE} }

// CurrentUser is HKEY_CURRENT_USER.
func CurrentUser() Hive { return nativeHive{name: "HKCU", key: registry.CURRENT_USER} }

// DefaultRoots returns the HKLM uninstall roots, plus the HKCU one when
// includeUser is set.
func DefaultRoots(includeUser bool) []Root {
	roots := []Root{
		{Hive: LocalMachine(), Path: NativePath},
		{Hive: LocalMachine(), Path: WowPath},
	}
	if includeUser {
		roots = append(roots, Root{Hive: CurrentUser(), Path: NativePath})
	}
	return roots
}

type nativeHive struct {
	name string
	key  registry.Key
}

func (h nativeHive) Name() string { return h.name }

func (h nativeHive) OpenKey(path string) (Key, error) {
	return openKey(h.key, path)
}

func openKey(parent registry.Key, path string) (Key, error) {
	k, err := registry.OpenKey(parent, path, registry.ENUMERATE_SUB_KEYS|registry.QUERY_VALUE)
	if errors.Is(err, windows.ERROR_FILE_NOT_FOUND) {
		return nil, fmt.Errorf("%s: %w", path, ErrKeyNotFound)
	}
	if err != nil {
		return nil, err
	}
	return nativeKey{k: k}, nil
}

type nativeKey struct {
	k registry.Key
}

func (n nativeKey) SubKeyNames() ([]string, error) { return n.k.ReadSubKeyNames(-1) }

func (n nativeKey) OpenSubKey(name string) (Key, error) { return openKey(n.k, name) }

func (n nativeKey) ValueNames() ([]string, error) { return n.k.ReadValueNames(-1) }

func (n nativeKey) Close() error { return n.k.Close() }

func (n nativeKey) ModTime() (time.Time, error) {
	info, err := n.k.Stat()
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (n nativeKey) Value(name string) ([]byte, uint32, error) {
	size, valType, err := n.k.GetValue(name, nil)
	if err != nil {
		return nil, 0, err
	}
	if size == 0 {
		return nil, valType, nil
	}

	buf := make([]byte, size)
	size, valType, err = n.k.GetValue(name, buf)
	if err != nil {
		return nil, 0, err
	}
	return buf[:size], valType, nil
}
