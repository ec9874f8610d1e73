//go:build !linux

package modem

import (
	"fmt"

	"github.com/ausocean/gitmodem/audio"
	"github.com/ausocean/utils/logging"
)

func openALSA(cfg Config, l logging.Logger) (audio.Device, error) {
	return nil, fmt.Errorf("modem: ALSA backend is only available on linux, use BackendPortAudio")
}
