package seed

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is the YAML form of Options, e.g.
//
//	users: 50
//	posts: 200
//	exhibition_ratio: 0.5
//	cities:
//	  - {name: Paris, lat: 48.8566, lng: 2.3522}
//	hashtags: [watercolor, sculpture]
type Preset struct {
	Users           *int     `yaml:"users"`
	Posts           *int     `yaml:"posts"`
	ExhibitionRatio *float64 `yaml:"exhibition_ratio"`
	MaxLikes        *int     `yaml:"max_likes"`
	MaxSaves        *int     `yaml:"max_saves"`
	MaxComments     *int     `yaml:"max_comments"`
	Cities          []City   `yaml:"cities"`
	Hashtags        []string `yaml:"hashtags"`
	RandSeed        int64    `yaml:"rand_seed"`
}

// LoadPreset reads a preset file.
func LoadPreset(path string) (*Preset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset: %w", err)
	}
	return ParsePreset(raw)
}

// ParsePreset decodes preset YAML. Unknown keys are rejected.
func ParsePreset(raw []byte) (*Preset, error) {
	var p Preset
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse preset: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Preset) validate() error {
	for _, v := range []*int{p.Users, p.Posts, p.MaxLikes, p.MaxSaves, p.MaxComments} {
		if v != nil && *v < 0 {
			return fmt.Errorf("preset counts must not be negative")
		}
	}
	if r := p.ExhibitionRatio; r != nil && (*r < 0 || *r > 1) {
		return fmt.Errorf("exhibition_ratio must be between 0 and 1")
	}
	for _, c := range p.Cities {
		if c.Name == "" || c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
			return fmt.Errorf("invalid city %q", c.Name)
		}
	}
	return nil
}

// Apply overlays the preset on base.
func (p *Preset) Apply(base Options) Options {
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&base.Users, p.Users)
	setInt(&base.Posts, p.Posts)
	setInt(&base.MaxLikes, p.MaxLikes)
	setInt(&base.MaxSaves, p.MaxSaves)
	setInt(&base.MaxComments, p.MaxComments)
	if p.ExhibitionRatio != nil {
		base.ExhibitionRatio = *p.ExhibitionRatio
	}
	if len(p.Cities) > 0 {
		base.Cities = p.Cities
	}
	if len(p.Hashtags) > 0 {
		base.Hashtags = p.Hashtags
	}
	if p.RandSeed != 0 {
		base.RandSeed = p.RandSeed
	}
	return base
}
