// flac2wav converts FLAC files to WAV files.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flacenc/flac"
	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/pathutil"
	"github.com/pkg/errors"
)

var flagForce bool

func init() {
	flag.BoolVar(&flagForce, "f", false, "force overwrite")
}

func main() {
	flag.Parse()
	for _, path := range flag.Args() {
		if err := flac2wav(path); err != nil {
			log.Fatalf("%+v", err)
		}
	}
}

func flac2wav(path string) error {
	stream, err := flac.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}

	wavPath := pathutil.TrimExt(path) + ".wav"
	if !flagForce && osutil.Exists(wavPath) {
		return errors.Errorf("WAV file %q already present; use -f flag to force overwrite", wavPath)
	}
	fw, err := os.Create(wavPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer fw.Close()

	si := stream.StreamInfo
	enc := wav.NewEncoder(fw, int(si.SampleRate), int(si.BitsPerSample), int(si.ChannelCount), 1)
	defer enc.Close()

	nchannels := int(si.ChannelCount)
	nsamples := 0
	if nchannels > 0 {
		nsamples = len(stream.Samples[0])
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: nchannels,
			SampleRate:  int(si.SampleRate),
		},
		Data:           make([]int, nchannels),
		SourceBitDepth: int(si.BitsPerSample),
	}
	for i := 0; i < nsamples; i++ {
		for ch := 0; ch < nchannels; ch++ {
			buf.Data[ch] = int(stream.Samples[ch][i])
		}
		if err := enc.Write(buf); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
