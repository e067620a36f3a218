package runner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// ErrUnsupportedCodePage is wrapped when a code page has no decoder.
var ErrUnsupportedCodePage = errors.New("unsupported code page")

const codePageUTF8 = 65001

// Windows code pages whose IANA charset name differs from the number.
// OEM pages such as 437, 850 and 866 are IANA aliases already.
var windowsCharsets = map[int]string{
	65001: "utf-8",
	65000: "utf-7",
	1250:  "windows-1250",
	1251:  "windows-1251",
	1252:  "windows-1252",
	1253:  "windows-1253",
	1254:  "windows-1254",
	936:   "gbk",
	932:   "shift_jis",
	949:   "euc-kr",
	950:   "big5",
}

// EncodingFromCHCP returns the encoding named by `chcp` output, e.g.
// "Active code page: 850." in any console language. UTF-8 yields nil.
func EncodingFromCHCP(out string) (encoding.Encoding, error) {
	page, err := codePageNumber(out)
	if err != nil {
		return nil, err
	}
	if page == codePageUTF8 {
		return nil, nil
	}

	charset, ok := windowsCharsets[page]
	if !ok {
		charset = strconv.Itoa(page)
	}
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, fmt.Errorf("%w %d: %v", ErrUnsupportedCodePage, page, err)
	}
	// known to IANA but without a decoder in x/text
	if enc == nil {
		return nil, fmt.Errorf("%w %d (%s)", ErrUnsupportedCodePage, page, charset)
	}
	return enc, nil
}

// codePageNumber reads the first run of ASCII digits in s.
func codePageNumber(s string) (int, error) {
	start := strings.IndexFunc(s, isASCIIDigit)
	if start < 0 {
		return 0, fmt.Errorf("chcp output %q has no code page", strings.TrimSpace(s))
	}
	digits := s[start:]
	if n := strings.IndexFunc(digits, func(r rune) bool { return !isASCIIDigit(r) }); n >= 0 {
		digits = digits[:n]
	}
	return strconv.Atoi(digits)
}

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }

// Decode converts s from enc to UTF-8. A nil enc returns s unchanged.
func Decode(enc encoding.Encoding, s string) (string, error) {
	if enc == nil {
		return s, nil
	}
	out, err := enc.NewDecoder().String(s)
	if err != nil {
		return "", fmt.Errorf("decode console output: %w", err)
	}
	return out, nil
}
