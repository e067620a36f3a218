package component

// FirstNonEmpty returns the first non-empty value in declaration order.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Lookup returns the value of the first key that is present in props with a
// non-empty value. Keys are tried in the order given.
func Lookup(props map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := props[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// SinglePublisher wraps a publisher string that the source reports as one
// delimited value. The value is not split.
func SinglePublisher(s string) []string {
	if s == "" {
		return []string{}
	}
	return []string{s}
}

var (
	applePublishers     = []string{"Apple Code Signing Certification Authority", "Apple Root CA"}
	microsoftPublishers = []string{"Microsoft"}
)

// ApplePublishers returns the signer set attributed to the macOS base system.
func ApplePublishers() []string {
	return append([]string(nil), applePublishers...)
}

// MicrosoftPublishers returns the publisher set attributed to the Windows base system.
func MicrosoftPublishers() []string {
	return append([]string(nil), microsoftPublishers...)
}
