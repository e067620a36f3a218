package collector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-tangra/go-tangra-sbom/internal/component"
	"github.com/go-tangra/go-tangra-sbom/internal/runner"
)

const sampleProfile = `{
  "SPSoftwareDataType": [
    {
      "_name": "os_overview",
      "os_version": "macOS 14.2.1 (23C71)",
      "kernel_version": "Darwin 23.2.0",
      "local_host_name": "studio-7"
    }
  ],
  "SPExtensionsDataType": [
    {
      "_name": "AppleACPIPlatform",
      "spext_bundleid": "com.apple.driver.AppleACPIPlatform",
      "spext_lastModified": "2023-12-07T08:11:02Z",
      "spext_path": "/System/Library/Extensions/AppleACPIPlatform.kext",
      "spext_signed_by": "Software Signing, Apple Code Signing Certification Authority, Apple Root CA",
      "spext_version": "6.1"
    },
    {
      "_name": "Unsigned",
      "spext_path": "/Library/Extensions/Unsigned.kext",
      "version": "2.0"
    }
  ],
  "SPApplicationsDataType": [
    {
      "_name": "Safari",
      "arch_kind": "arch_arm_i64",
      "lastModified": "2023-12-07T08:11:02Z",
      "obtained_from": "apple",
      "path": "/Applications/Safari.app",
      "signed_by": ["Software Signing", "Apple Code Signing Certification Authority", "Apple Root CA"],
      "version": "17.2.1"
    },
    {
      "_name": "Homebrew Tool",
      "path": "/opt/homebrew/bin/tool.app"
    }
  ]
}`

var profilerArgs = []string{
	"system_profiler", "SPSoftwareDataType", "SPExtensionsDataType", "SPApplicationsDataType",
	"-detailLevel", "full", "-json",
}

func TestCollectFromJSON(t *testing.T) {
	comps, err := CollectFromJSON([]byte(sampleProfile))
	require.NoError(t, err)
	require.Len(t, comps, 5)

	osComp := comps[0]
	assert.Equal(t, component.OS, osComp.Kind)
	assert.Equal(t, "macOS", osComp.Name)
	assert.Equal(t, "macOS", osComp.ID)
	assert.Equal(t, "14.2.1 (23C71)", osComp.Version)
	assert.Equal(t, "/", osComp.Path)
	assert.True(t, osComp.Modified.IsZero())
	assert.Equal(t, component.ApplePublishers(), osComp.Publishers)

	kext := comps[1]
	assert.Equal(t, component.Driver, kext.Kind)
	assert.Equal(t, "AppleACPIPlatform", kext.Name)
	assert.Equal(t, "com.apple.driver.AppleACPIPlatform", kext.ID)
	assert.Equal(t, "6.1", kext.Version)
	assert.Equal(t, time.Date(2023, 12, 7, 8, 11, 2, 0, time.UTC), kext.Modified)
	assert.Equal(t, []string{"Software Signing, Apple Code Signing Certification Authority, Apple Root CA"}, kext.Publishers)
	assert.Contains(t, string(kext.RawInfo), `"spext_bundleid"`)

	unsigned := comps[2]
	assert.Equal(t, "Unsigned", unsigned.ID)
	assert.Equal(t, "2.0", unsigned.Version)
	assert.True(t, unsigned.Modified.IsZero())
	assert.NotNil(t, unsigned.Publishers)
	assert.Empty(t, unsigned.Publishers)

	safari := comps[3]
	assert.Equal(t, component.Application, safari.Kind)
	assert.Equal(t, "Safari", safari.ID)
	assert.Equal(t, "17.2.1", safari.Version)
	assert.Equal(t, "/Applications/Safari.app", safari.Path)
	assert.Len(t, safari.Publishers, 3)

	tool := comps[4]
	assert.Equal(t, "Homebrew Tool", tool.ID)
	assert.Equal(t, "", tool.Version)
	assert.NotNil(t, tool.Publishers)
}

func TestCollectFromJSONErrors(t *testing.T) {
	testCases := []struct {
		Name    string
		Input   string
		WantErr func(t *testing.T, err error)
	}{
		{
			Name:  "not json",
			Input: "system_profiler: unknown data type",
		},
		{
			Name:  "wrong shape",
			Input: `{"SPApplicationsDataType": [{"_name": 42}]}`,
		},
		{
			Name:  "bad timestamp",
			Input: `{"SPApplicationsDataType": [{"_name": "X", "lastModified": "yesterday"}]}`,
			WantErr: func(t *testing.T, err error) {
				var dte *DateTimeError
				require.ErrorAs(t, err, &dte)
				assert.Equal(t, "yesterday", dte.Raw)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			comps, err := CollectFromJSON([]byte(tc.Input))

			assert.Nil(t, comps)
			var se *SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "system_profiler", se.Source)
			if tc.WantErr != nil {
				tc.WantErr(t, err)
			}
		})
	}
}

func TestCollectFromJSONEmpty(t *testing.T) {
	comps, err := CollectFromJSON([]byte(`{}`))

	require.NoError(t, err)
	assert.Empty(t, comps)
}

func TestMacCollectorCollect(t *testing.T) {
	r := newMockRunner()
	r.Register(profilerArgs, sampleProfile, nil)
	c := NewMacCollector(r, "")

	require.NoError(t, c.Setup(context.Background()))
	comps, err := c.Collect(context.Background())

	require.NoError(t, err)
	assert.Len(t, comps, 5)
	assert.Equal(t, "macos", c.Name())
}

func TestMacCollectorDetailLevel(t *testing.T) {
	r := newMockRunner()
	args := append([]string(nil), profilerArgs...)
	args[5] = "mini"
	r.Register(args, `{}`, nil)

	_, err := NewMacCollector(r, "mini").Collect(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"system_profiler SPSoftwareDataType SPExtensionsDataType SPApplicationsDataType -detailLevel mini -json"}, r.calls)
}

func TestMacCollectorToolFailure(t *testing.T) {
	r := newMockRunner()
	toolErr := &runner.ToolError{Tool: "system_profiler", ExitStatus: 1, Err: errors.New("exit status 1")}
	r.Register(profilerArgs, "", toolErr)

	comps, err := NewMacCollector(r, "full").Collect(context.Background())

	assert.Nil(t, comps)
	var te *runner.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.ExitStatus)
}

func TestProfileCollector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleProfile), 0o600))
	c := NewProfileCollector(path)

	require.NoError(t, c.Setup(context.Background()))
	comps, err := c.Collect(context.Background())

	require.NoError(t, err)
	assert.Len(t, comps, 5)
}

func TestProfileHostFacts(t *testing.T) {
	testCases := []struct {
		Name  string
		Input string
		Want  HostFacts
	}{
		{
			Name:  "full",
			Input: sampleProfile,
			Want:  HostFacts{Hostname: "studio-7", Platform: "darwin", PlatformVersion: "14.2.1", KernelVersion: "23.2.0"},
		},
		{
			Name:  "no software section",
			Input: `{"SPApplicationsDataType": []}`,
			Want:  HostFacts{Platform: "darwin"},
		},
		{
			Name:  "malformed",
			Input: `{"SPSoftwareDataType": [`,
			Want:  HostFacts{Platform: "darwin"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Want, profileHostFacts([]byte(tc.Input)))
		})
	}
}

func TestProfileCollectorMissingFile(t *testing.T) {
	c := NewProfileCollector(filepath.Join(t.TempDir(), "absent.json"))

	assert.Error(t, c.Setup(context.Background()))
	_, err := c.Collect(context.Background())
	assert.Error(t, err)
}
