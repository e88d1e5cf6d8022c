package pipeline

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Manifest is the on-disk run configuration.
type Manifest struct {
	Discipline        string `toml:"discipline"`
	ReqdWorkGroupSize bool   `toml:"reqd_work_group_size"`
	InlineHints       bool   `toml:"inline_hints"`
	GlobalDCE         bool   `toml:"global_dce"`
}

// LoadManifest reads a TOML run manifest.
func LoadManifest(path string) (Options, error) {
	var man Manifest
	meta, err := toml.DecodeFile(path, &man)
	if err != nil {
		return Options{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Options{}, fmt.Errorf("manifest %s: unknown key %s", path, undecoded[0])
	}
	return man.Options()
}

// Options validates the manifest and converts it to run options.
func (m Manifest) Options() (Options, error) {
	switch m.Discipline {
	case "", DisciplineInside, DisciplineOutside:
	default:
		return Options{}, fmt.Errorf("unknown marshalling discipline %q", m.Discipline)
	}
	return Options{
		Discipline:        m.Discipline,
		ReqdWorkGroupSize: m.ReqdWorkGroupSize,
		InlineHints:       m.InlineHints,
		GlobalDCE:         m.GlobalDCE,
	}, nil
}
