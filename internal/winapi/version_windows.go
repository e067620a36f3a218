//go:build windows

package winapi

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modversion                  = windows.NewLazySystemDLL("version.dll")
	procGetFileVersionInfoSizeW = modversion.NewProc("GetFileVersionInfoSizeW")
	procGetFileVersionInfoW     = modversion.NewProc("GetFileVersionInfoW")
	procVerQueryValueW          = modversion.NewProc("VerQueryValueW")
)

// NewExtractor returns an Extractor backed by version.dll.
func NewExtractor() *Extractor {
	return &Extractor{api: nativeVersionAPI{}}
}

type nativeVersionAPI struct{}

func (nativeVersionAPI) infoSize(path []uint16) (uint32, error) {
	r, _, e := procGetFileVersionInfoSizeW.Call(uintptr(unsafe.Pointer(&path[0])), 0)
	if r == 0 {
		return 0, callError(e)
	}
	return uint32(r), nil
}

func (nativeVersionAPI) info(path []uint16, buf []byte) error {
	r, _, e := procGetFileVersionInfoW.Call(
		uintptr(unsafe.Pointer(&path[0])),
		0,
		uintptr(len(buf)),
		uintptr(unsafe.Pointer(&buf[0])),
	)
	if r == 0 {
		return callError(e)
	}
	return nil
}

func (nativeVersionAPI) queryValue(block []byte, subBlock []uint16) (*FixedFileInfo, uint32, error) {
	var fi *FixedFileInfo
	var n uint32
	r, _, e := procVerQueryValueW.Call(
		uintptr(unsafe.Pointer(&block[0])),
		uintptr(unsafe.Pointer(&subBlock[0])),
		uintptr(unsafe.Pointer(&fi)),
		uintptr(unsafe.Pointer(&n)),
	)
	if r == 0 {
		return nil, 0, callError(e)
	}
	return fi, n, nil
}

// callError normalizes the error returned by LazyProc.Call, which is
// always non-nil and may hold ERROR_SUCCESS.
func callError(e error) error {
	if errno, ok := e.(syscall.Errno); ok && errno == 0 {
		return syscall.EINVAL
	}
	return e
}
