package mpr121

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ElectrodeProfile overrides thresholds of a single electrode.
type ElectrodeProfile struct {
	Index            int    `yaml:"index"`
	TouchThreshold   *uint8 `yaml:"touchThreshold,omitempty"`
	ReleaseThreshold *uint8 `yaml:"releaseThreshold,omitempty"`
}

// Profile is a device configuration loaded from YAML:
//
//	address: "5c"
//	touchThreshold: 40
//	releaseThreshold: 20
//	samplePeriod: 16ms
//	electrodes:
//	  - index: 3
//	    touchThreshold: 30
//	run: true
type Profile struct {
	Address          string             `yaml:"address,omitempty"`
	TouchThreshold   *uint8             `yaml:"touchThreshold,omitempty"`
	ReleaseThreshold *uint8             `yaml:"releaseThreshold,omitempty"`
	SamplePeriod     string             `yaml:"samplePeriod,omitempty"`
	Electrodes       []ElectrodeProfile `yaml:"electrodes,omitempty"`
	Run              bool               `yaml:"run,omitempty"`
}

// LoadProfile decodes and validates a profile. Unknown keys are rejected.
func LoadProfile(r io.Reader) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(&p)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func LoadProfileFile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open profile: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadProfile(f)
}

func (p *Profile) Validate() error {
	if _, err := ParseAddress(p.Address); err != nil {
		return err
	}
	if p.SamplePeriod != "" {
		if _, err := ParseSamplePeriodString(p.SamplePeriod); err != nil {
			return err
		}
	}
	for _, e := range p.Electrodes {
		if err := checkIndex(e.Index); err != nil {
			return err
		}
	}
	return nil
}

// DeviceAddress returns the parsed address, DefaultAddress when unset.
func (p *Profile) DeviceAddress() (byte, error) {
	return ParseAddress(p.Address)
}

// Apply writes the profile to the device: global thresholds, per-electrode
// overrides, sample period, then run mode if requested. The profile is
// validated before anything is written.
func (p *Profile) Apply(ctx context.Context, d *Device) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.TouchThreshold != nil {
		if err := d.SetTouchThreshold(ctx, *p.TouchThreshold); err != nil {
			return err
		}
	}
	if p.ReleaseThreshold != nil {
		if err := d.SetReleaseThreshold(ctx, *p.ReleaseThreshold); err != nil {
			return err
		}
	}
	for _, e := range p.Electrodes {
		if e.TouchThreshold != nil {
			if err := d.SetElectrodeTouchThreshold(ctx, e.Index, *e.TouchThreshold); err != nil {
				return err
			}
		}
		if e.ReleaseThreshold != nil {
			if err := d.SetElectrodeReleaseThreshold(ctx, e.Index, *e.ReleaseThreshold); err != nil {
				return err
			}
		}
	}
	if p.SamplePeriod != "" {
		period, err := ParseSamplePeriodString(p.SamplePeriod)
		if err != nil {
			return err
		}
		if err := d.SetSamplePeriod(ctx, period); err != nil {
			return err
		}
	}
	if p.Run {
		return d.Run(ctx)
	}
	return nil
}
