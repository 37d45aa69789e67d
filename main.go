package gosfzplayer

import (
	"fmt"
	"path/filepath"

	"github.com/GeoffreyPlitt/debuggo"
	"github.com/fatih/color"
)

var debug = debuggo.Debug("sfizz:main")

// SfzPlayer is the public entry point: it parses an SFZ file into
// Regions, wires a FilePool rooted at the file's own directory, and
// drives a BasicHost for rendering.
type SfzPlayer struct {
	sfzData *SfzData
	host    *BasicHost
}

// NewSfzPlayer parses sfzPath and builds a ready-to-render player at
// the given sample rate and block size, using cfg for voice/file-pool
// tuning.
func NewSfzPlayer(sfzPath string, cfg HostConfig, sampleRate float32, blockSize int) (*SfzPlayer, error) {
	debug("creating SFZ player for %s", sfzPath)

	sfzData, err := ParseSfzFile(sfzPath)
	if err != nil {
		return nil, fmt.Errorf("sfizz: creating player: %w", err)
	}
	debug("parsed %d regions", len(sfzData.Regions))

	regions := BuildRegions(sfzData)

	host := NewBasicHost(cfg, sampleRate, blockSize)
	host.filePool.SetRootDirectory(filepath.Dir(sfzPath))

	for _, region := range regions {
		if region.IsGenerator() || region.Sample == "" {
			continue
		}
		info, err := host.filePool.GetFileInformation(region.Sample)
		if err != nil {
			debug("failed to probe %s: %v", region.Sample, err)
			continue
		}
		region.IsStereo = info.Channels > 1
		if region.HasLoopMode && region.LoopMode == LoopModeNone {
			continue
		}
		if !region.HasLoopMode && info.HasLoop {
			region.LoopMode = LoopModeContinuous
			region.HasLoopMode = true
		}
		if !region.HasSampleEnd {
			region.SampleEnd = info.Frames
			region.HasSampleEnd = true
		}
		if info.HasLoop {
			if region.LoopStart == 0 {
				region.LoopStart = info.LoopStart
			}
			if region.LoopEnd == 0 {
				region.LoopEnd = info.LoopEnd
			}
		}
	}

	host.SetRegions(regions)

	color.New(color.FgGreen).Printf("sfizz: loaded %d regions (%d voices available) from %s\n",
		len(regions), cfg.MaxVoices, sfzPath)

	return &SfzPlayer{sfzData: sfzData, host: host}, nil
}

// Regions returns the player's resolved regions.
func (p *SfzPlayer) Regions() []*Region { return p.host.regions }

// Host returns the underlying BasicHost for direct MIDI/render access.
func (p *SfzPlayer) Host() *BasicHost { return p.host }

// Close stops the player's background file loading goroutines.
func (p *SfzPlayer) Close() {
	p.host.Close()
}
