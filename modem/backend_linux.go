//go:build linux

package modem

import (
	"github.com/ausocean/gitmodem/audio"
	"github.com/ausocean/utils/logging"
)

func openALSA(cfg Config, l logging.Logger) (audio.Device, error) {
	return audio.OpenALSA("", cfg.AFSK.SampleRate, l)
}
