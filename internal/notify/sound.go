package notify

import (
	"log"
	"os"
	"sync"
	"time"

	"trafficscope/internal/model"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
)

const playbackSampleRate = beep.SampleRate(44100)

// NopPlayer discards every playback request. Used when no audio output is
// wanted and in tests.
type NopPlayer struct{}

func (NopPlayer) Play(model.Sound, int) {}

// BeepPlayer plays wav files from the configured sound table through the
// default audio device. Playback is fire and forget; failures are logged
// and swallowed.
type BeepPlayer struct {
	sounds map[model.Sound]string

	initOnce sync.Once
	initErr  error
}

// NewBeepPlayer creates a player over the sound-name to wav-path table.
func NewBeepPlayer(sounds map[model.Sound]string) *BeepPlayer {
	return &BeepPlayer{sounds: sounds}
}

// Play starts asynchronous playback of the named sound.
func (p *BeepPlayer) Play(sound model.Sound, volume int) {
	if sound == model.SoundNone {
		return
	}
	path, ok := p.sounds[sound]
	if !ok {
		log.Printf("No wav file configured for sound %q", sound)
		return
	}
	go p.play(path, volume)
}

func (p *BeepPlayer) play(path string, volume int) {
	p.initOnce.Do(func() {
		p.initErr = speaker.Init(playbackSampleRate, playbackSampleRate.N(time.Second/10))
	})
	if p.initErr != nil {
		log.Printf("Audio output unavailable: %v", p.initErr)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		log.Printf("Failed to open sound file %s: %v", path, err)
		return
	}

	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		log.Printf("Failed to decode sound file %s: %v", path, err)
		return
	}
	defer streamer.Close()

	leveled := &effects.Volume{
		Streamer: beep.Resample(4, format.SampleRate, playbackSampleRate, streamer),
		Base:     2,
		Volume:   volumeGain(volume),
		Silent:   volume <= 0,
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(leveled, beep.Callback(func() { close(done) })))
	<-done
}

// volumeGain maps the 0..100 config volume onto the exponential gain scale
// used by the volume effect: 100 is unity, each 25 points halve the level.
func volumeGain(volume int) float64 {
	if volume > 100 {
		volume = 100
	}
	return float64(volume-100) / 25
}
