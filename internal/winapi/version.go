package winapi

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"unsafe"

	"github.com/go-tangra/go-tangra-sbom/internal/logging"
)

var log = logging.L("winapi")

// VersionOp names the step of the version-resource sequence that failed.
type VersionOp string

const (
	SizeUnavailable  VersionOp = "size unavailable"
	LoadFailed       VersionOp = "load failed"
	BlockQueryFailed VersionOp = "block query failed"
)

// VersionInfoError reports a failed version-resource lookup. Code carries
// the native error code when one was available.
type VersionInfoError struct {
	Op   VersionOp
	Path string
	Code uint32
	Err  error
}

func (e *VersionInfoError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("version info %s: %s (code %d)", e.Op, e.Path, e.Code)
	}
	return fmt.Sprintf("version info %s: %s", e.Op, e.Path)
}

func (e *VersionInfoError) Unwrap() error { return e.Err }

// FixedFileInfo mirrors VS_FIXEDFILEINFO.
type FixedFileInfo struct {
	Signature        uint32
	StrucVersion     uint32
	FileVersionMS    uint32
	FileVersionLS    uint32
	ProductVersionMS uint32
	ProductVersionLS uint32
	FileFlagsMask    uint32
	FileFlags        uint32
	FileOS           uint32
	FileType         uint32
	FileSubtype      uint32
	FileDateMS       uint32
	FileDateLS       uint32
}

const fixedFileInfoSize = uint32(unsafe.Sizeof(FixedFileInfo{}))

// FormatProductVersion renders the product version quadruplet as
// MAJOR.MINOR.BUILD.REVISION.
func FormatProductVersion(ms, ls uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", ms>>16, ms&0xFFFF, ls>>16, ls&0xFFFF)
}

// versionAPI is the three-call native sequence. Paths and sub-blocks are
// NUL-terminated UTF-16.
type versionAPI interface {
	infoSize(path []uint16) (uint32, error)
	info(path []uint16, buf []byte) error
	queryValue(block []byte, subBlock []uint16) (*FixedFileInfo, uint32, error)
}

// Extractor reads product versions from binary version resources.
type Extractor struct {
	api versionAPI
}

// FileVersion returns the product version of the binary at path.
func (x *Extractor) FileVersion(path string) (string, error) {
	wpath := Encode(path)

	size, err := x.api.infoSize(wpath)
	log.Debug("GetFileVersionInfoSizeW", logging.KeyPath, path, "size", size)
	if size == 0 {
		return "", &VersionInfoError{Op: SizeUnavailable, Path: path, Code: errorCode(err), Err: err}
	}

	buf := make([]byte, size)
	if err := x.api.info(wpath, buf); err != nil {
		log.Debug("GetFileVersionInfoW failed", logging.KeyPath, path, logging.KeyError, err)
		return "", &VersionInfoError{Op: LoadFailed, Path: path, Code: errorCode(err), Err: err}
	}

	fi, n, err := x.api.queryValue(buf, Encode(`\`))
	if err != nil || fi == nil || n < fixedFileInfoSize {
		log.Debug("VerQueryValueW failed", logging.KeyPath, path, "len", n, logging.KeyError, err)
		return "", &VersionInfoError{Op: BlockQueryFailed, Path: path, Code: errorCode(err), Err: err}
	}

	log.Debug("VS_FIXEDFILEINFO",
		logging.KeyPath, path,
		slog.Group("fixed",
			"signature", fmt.Sprintf("%#x", fi.Signature),
			"fileVersionMS", fi.FileVersionMS,
			"fileVersionLS", fi.FileVersionLS,
			"productVersionMS", fi.ProductVersionMS,
			"productVersionLS", fi.ProductVersionLS,
			"fileType", fi.FileType,
		),
	)

	return FormatProductVersion(fi.ProductVersionMS, fi.ProductVersionLS), nil
}

func errorCode(err error) uint32 {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}
	return 0
}
