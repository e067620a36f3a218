package component

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind classifies an inventory component.
type Kind int

const (
	Application Kind = iota
	Driver
	OS
	Other
)

var kindNames = [...]string{
	Application: "Application",
	Driver:      "Driver",
	OS:          "OS",
	Other:       "Other",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= Application && k <= Other
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid component kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown component kind %q", string(text))
}

// Component is one normalized inventory record.
type Component struct {
	Kind       Kind            `json:"kind" yaml:"kind"`
	Name       string          `json:"name" yaml:"name"`
	ID         string          `json:"id" yaml:"id"`
	Version    string          `json:"version" yaml:"version"`
	Path       string          `json:"path" yaml:"path"`
	Modified   time.Time       `json:"modified" yaml:"modified"`
	Publishers []string        `json:"publishers" yaml:"publishers"`
	RawInfo    json.RawMessage `json:"raw_info,omitempty" yaml:"-"`
}

// Normalize enforces the invariants every emitted component must hold:
// the id falls back to the name, the timestamp is UTC and publishers is
// never nil.
func Normalize(c Component) Component {
	if c.ID == "" {
		c.ID = c.Name
	}
	if c.Modified.IsZero() {
		c.Modified = time.Time{}
	} else {
		c.Modified = c.Modified.UTC()
	}
	if c.Publishers == nil {
		c.Publishers = []string{}
	}
	return c
}

// Raw marshals a source record for RawInfo. Records that cannot be
// marshalled are dropped rather than failing the component.
func Raw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
