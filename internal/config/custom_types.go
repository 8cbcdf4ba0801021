// Package config handles application configuration.
package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FlexBool is a boolean that can be unmarshalled from a bool, a string
// ("true"/"false"/"1"/"0"), or a number (nonzero means true). Config files
// produced by different tooling disagree on how to spell a flag.
type FlexBool bool

// UnmarshalYAML implements the yaml.Unmarshaler interface for FlexBool.
func (fb *FlexBool) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!bool":
		var b bool
		if err := value.Decode(&b); err != nil {
			return err
		}
		*fb = FlexBool(b)
	case "!!str":
		b, err := strconv.ParseBool(value.Value)
		if err != nil {
			return fmt.Errorf("cannot parse %q as a bool", value.Value)
		}
		*fb = FlexBool(b)
	case "!!int":
		i, err := strconv.Atoi(value.Value)
		if err != nil {
			return err
		}
		*fb = FlexBool(i != 0)
	case "!!float":
		f, err := strconv.ParseFloat(value.Value, 64)
		if err != nil {
			return err
		}
		*fb = FlexBool(f != 0)
	default:
		return fmt.Errorf("cannot unmarshal %s into FlexBool", value.Tag)
	}
	return nil
}

// FlexDate is a date that can be unmarshalled from "2006-01-02", RFC3339, or
// left empty. The zero value means "not set".
type FlexDate struct {
	time.Time
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for FlexDate.
func (fd *FlexDate) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!null" || value.Value == "" {
		*fd = FlexDate{}
		return nil
	}
	if value.Tag != "!!str" && value.Tag != "!!timestamp" {
		return fmt.Errorf("cannot unmarshal %s into FlexDate", value.Tag)
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006/01/02"} {
		if t, err := time.Parse(layout, value.Value); err == nil {
			*fd = FlexDate{t.UTC()}
			return nil
		}
	}
	return fmt.Errorf("cannot parse %q as a date", value.Value)
}

// IsSet reports whether the date was provided.
func (fd FlexDate) IsSet() bool {
	return !fd.Time.IsZero()
}
