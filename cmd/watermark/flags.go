package main

import (
	"fmt"
	"image/color"

	"github.com/UnendingLoop/Watermarker/internal/model"
)

// flagError generates the error message to show when there is a flag error.
func flagError(name string, value any, reason string) error {
	return fmt.Errorf("invalid value %v for flag --%s: %s", value, name, reason)
}

// AnchorFlag is the flag type for watermark placement.
type AnchorFlag model.Anchor

func (a *AnchorFlag) Type() string {
	return "anchor"
}

func (a *AnchorFlag) Set(str string) error {
	v, err := model.ParseAnchor(str)
	if err != nil {
		return err
	}
	*a = AnchorFlag(v)
	return nil
}

func (a *AnchorFlag) String() string {
	if a == nil {
		return ""
	}
	return model.Anchor(*a).String()
}

// ColorFlag keeps the parsed color together with the name it was given as.
type ColorFlag struct {
	Name  string
	Value color.RGBA
}

func (c *ColorFlag) Type() string {
	return "color"
}

func (c *ColorFlag) Set(str string) error {
	v, err := model.ParseColor(str)
	if err != nil {
		return err
	}
	c.Name = str
	c.Value = v
	return nil
}

func (c *ColorFlag) String() string {
	if c == nil {
		return ""
	}
	return c.Name
}
