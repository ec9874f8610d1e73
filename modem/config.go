/*
NAME
  config.go

DESCRIPTION
  config.go defines Config, the single struct an application fills in to
  construct a Modem, modeled on revid/config.Config: exported fields
  with doc comments, a Setup/Validate step that downgrades invalid
  fields to defaults and records every downgrade in a MultiError rather
  than failing outright, the same policy device/alsa/alsa.go's Setup
  follows for its own Config.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package modem wires together the audio, afsk, frame, arq and session
// layers into the application-facing Connect/Listen/Send/Recv/Close
// surface of spec's upper boundary.
package modem

import (
	"fmt"
	"time"

	"github.com/ausocean/gitmodem/afsk"
	"github.com/ausocean/utils/logging"
)

// Backend selects which audio.Device implementation a Modem opens.
type Backend int

const (
	// BackendLoopback routes TX samples directly into the RX buffer
	// with no hardware, per spec's "loopback" configuration option.
	BackendLoopback Backend = iota
	// BackendALSA opens a Linux ALSA sound card.
	BackendALSA
	// BackendPortAudio opens the default system audio device via
	// PortAudio, for platforms without ALSA.
	BackendPortAudio
)

// MultiError aggregates more than one configuration problem, modeled on
// device.MultiError: Setup keeps going and applies a default for each
// invalid field rather than failing on the first one.
type MultiError []error

func (e MultiError) Error() string {
	if len(e) == 0 {
		return "no errors"
	}
	s := fmt.Sprintf("%d configuration error(s): ", len(e))
	for i, err := range e {
		if i > 0 {
			s += "; "
		}
		s += err.Error()
	}
	return s
}

// Config is the complete set of tunables named in spec §6 and §9.
type Config struct {
	// Backend selects the audio.Device implementation.
	Backend Backend

	// Audible additionally emits loopback playback to a real device,
	// per spec's "audible" option. Only meaningful with BackendLoopback.
	Audible bool

	// InputDevice / OutputDevice hold device indices. No backend reads
	// them: ALSA opens the first suitable capture and playback devices,
	// and PortAudio opens the system default input and output.
	InputDevice  int
	OutputDevice int

	// AFSK carries the physical-layer parameter set (sample rate, baud,
	// tone frequencies, bandwidth, volume, filter taps).
	AFSK afsk.Config

	// RecvTimeout bounds a single silence-terminated capture.
	RecvTimeout time.Duration

	// WAVCapturePath, if non-empty, additionally records all TX/RX
	// audio to this path via audio.WAVCapture, for offline debugging.
	WAVCapturePath string

	l logging.Logger
}

// defaultRecvTimeout is generous relative to arq.DefaultTimeout so a
// single capture call can outlast one ARQ retry cycle.
const defaultRecvTimeout = 6 * time.Second

// Setup fills in defaults: an all-zero AFSK is replaced by
// afsk.DefaultConfig without being recorded, while an AFSK that fails
// Validate and a non-positive RecvTimeout are replaced by their defaults
// and each recorded in the returned MultiError (mirrors
// alsa.ALSA.Setup's validate-and-default policy). A non-nil MultiError
// return is not an error condition the caller must treat as fatal -- it
// is informational, exactly as device.MultiError is used elsewhere in
// the teacher tree.
func (c *Config) Setup(l logging.Logger) error {
	c.l = l
	var errs MultiError

	if c.AFSK == (afsk.Config{}) {
		c.AFSK = afsk.DefaultConfig()
	}
	if err := c.AFSK.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("invalid AFSK config, using defaults: %w", err))
		c.AFSK = afsk.DefaultConfig()
	}
	if c.RecvTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid recv timeout, defaulting to %s", defaultRecvTimeout))
		c.RecvTimeout = defaultRecvTimeout
	}

	if len(errs) != 0 {
		return errs
	}
	return nil
}
