package uninstall

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-tangra/go-tangra-sbom/internal/winapi"
)

type fakeValue struct {
	typ  uint32
	data []byte
	err  error
}

type fakeKey struct {
	subkeys    map[string]*fakeKey
	order      []string
	listErr    error
	openErr    error
	statErr    error
	modified   time.Time
	valueOrder []string
	values     map[string]fakeValue
	closed     bool
}

func (k *fakeKey) SubKeyNames() ([]string, error) { return k.order, k.listErr }

func (k *fakeKey) OpenSubKey(name string) (Key, error) {
	sub, ok := k.subkeys[name]
	if !ok {
		return nil, ErrKeyNotFound
	}
	if sub.openErr != nil {
		return nil, sub.openErr
	}
	return sub, nil
}

func (k *fakeKey) ModTime() (time.Time, error) { return k.modified, k.statErr }

func (k *fakeKey) ValueNames() ([]string, error) { return k.valueOrder, nil }

func (k *fakeKey) Value(name string) ([]byte, uint32, error) {
	v := k.values[name]
	return v.data, v.typ, v.err
}

func (k *fakeKey) Close() error {
	k.closed = true
	return nil
}

func (k *fakeKey) add(name string, sub *fakeKey) *fakeKey {
	if k.subkeys == nil {
		k.subkeys = map[string]*fakeKey{}
	}
	k.subkeys[name] = sub
	k.order = append(k.order, name)
	return k
}

func (k *fakeKey) set(name string, typ uint32, data []byte) *fakeKey {
	if k.values == nil {
		k.values = map[string]fakeValue{}
	}
	k.values[name] = fakeValue{typ: typ, data: data}
	k.valueOrder = append(k.valueOrder, name)
	return k
}

type fakeHive struct {
	name string
	keys map[string]*fakeKey
	err  error
}

func (h *fakeHive) Name() string { return h.name }

func (h *fakeHive) OpenKey(path string) (Key, error) {
	if h.err != nil {
		return nil, h.err
	}
	k, ok := h.keys[path]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return k, nil
}

func sz(s string) []byte {
	units := winapi.Encode(s)
	b := make([]byte, 0, 2*len(units))
	for _, u := range units {
		b = append(b, byte(u), byte(u>>8))
	}
	return b
}

func TestDecodeValue(t *testing.T) {
	testCases := []struct {
		Name string
		Type uint32
		Data []byte
		Want string
	}{
		{Name: "sz", Type: typeSZ, Data: sz("Contoso App"), Want: "Contoso App"},
		{Name: "expand sz", Type: typeExpandSZ, Data: sz(`%ProgramFiles%\App`), Want: `%ProgramFiles%\App`},
		{Name: "multi sz", Type: typeMultiSZ, Data: sz("one\x00two\x00three\x00"), Want: "one\ntwo\nthree"},
		{Name: "empty sz", Type: typeSZ, Data: nil, Want: ""},
		{Name: "dword", Type: typeDWORD, Data: []byte{1, 2, 3}, Want: "[1 2 3]"},
		{Name: "binary", Type: typeBinary, Data: []byte{0xde, 0xad}, Want: "[222 173]"},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Want, DecodeValue(tc.Type, tc.Data))
		})
	}
}

func TestDecodeMultiStringNewlineCount(t *testing.T) {
	segments := []string{"a", "bb", "ccc", "dddd"}
	data := sz(strings.Join(segments, "\x00") + "\x00")

	got := DecodeValue(typeMultiSZ, data)

	assert.Equal(t, len(segments)-1, strings.Count(got, "\n"))
	assert.Equal(t, segments, strings.Split(got, "\n"))
}

func TestEntries(t *testing.T) {
	mod := time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))

	app := (&fakeKey{modified: mod}).
		set("DisplayName", typeSZ, sz("7-Zip 23.01 (x64)")).
		set("DisplayVersion", typeSZ, sz("23.01")).
		set("EstimatedSize", typeDWORD, []byte{0x10, 0, 0, 0})
	app.values["Broken"] = fakeValue{err: errors.New("access denied")}
	app.valueOrder = append(app.valueOrder, "Broken")

	native := (&fakeKey{}).
		add("7-Zip", app).
		add("Locked", &fakeKey{openErr: errors.New("access denied")}).
		add("Stale", &fakeKey{statErr: errors.New("stat failed")})

	wow := (&fakeKey{}).add("{GUID-1}", (&fakeKey{modified: mod}).set("DisplayName", typeSZ, sz("Runtime")))

	hklm := &fakeHive{name: "HKLM", keys: map[string]*fakeKey{NativePath: native, WowPath: wow}}
	r := &Reader{Roots: []Root{{Hive: hklm, Path: NativePath}, {Hive: hklm, Path: WowPath}}}

	entries, err := r.Entries(context.Background())

	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "7-Zip", entries[0].KeyName)
	assert.Equal(t, `HKLM\`+NativePath, entries[0].Root)
	assert.Equal(t, mod.UTC(), entries[0].Modified)
	assert.Equal(t, map[string]string{
		"DisplayName":    "7-Zip 23.01 (x64)",
		"DisplayVersion": "23.01",
		"EstimatedSize":  "[16 0 0 0]",
	}, entries[0].Properties)

	assert.Equal(t, "{GUID-1}", entries[1].KeyName)
	assert.Equal(t, `HKLM\`+WowPath, entries[1].Root)
	assert.True(t, native.closed)
}

func TestEntriesEmptyRoot(t *testing.T) {
	hklm := &fakeHive{name: "HKLM", keys: map[string]*fakeKey{NativePath: {}}}
	r := &Reader{Roots: []Root{{Hive: hklm, Path: NativePath}}}

	entries, err := r.Entries(context.Background())

	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntriesMissingRoot(t *testing.T) {
	hklm := &fakeHive{name: "HKLM", keys: map[string]*fakeKey{}}
	r := &Reader{Roots: []Root{{Hive: hklm, Path: WowPath}}}

	entries, err := r.Entries(context.Background())

	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntriesRootFailure(t *testing.T) {
	testCases := []struct {
		Name string
		Hive *fakeHive
	}{
		{
			Name: "open denied",
			Hive: &fakeHive{name: "HKLM", err: errors.New("access denied")},
		},
		{
			Name: "list fails",
			Hive: &fakeHive{name: "HKLM", keys: map[string]*fakeKey{NativePath: {listErr: errors.New("io")}}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			r := &Reader{Roots: []Root{{Hive: tc.Hive, Path: NativePath}}}

			entries, err := r.Entries(context.Background())

			assert.Nil(t, entries)
			var re *RegistryError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, `HKLM\`+NativePath, re.KeyPath)
		})
	}
}

func TestEntriesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hklm := &fakeHive{name: "HKLM", keys: map[string]*fakeKey{NativePath: {}}}
	r := &Reader{Roots: []Root{{Hive: hklm, Path: NativePath}}}

	_, err := r.Entries(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}
