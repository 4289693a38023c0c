// wav2flac converts WAV files to FLAC files.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flacenc/flac"
	"github.com/mewkiz/flacenc/meta"
	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/pathutil"
	"github.com/pkg/errors"
)

func main() {
	var force bool
	var verify bool
	var blockSize int
	flag.BoolVar(&force, "f", false, "force overwrite")
	flag.BoolVar(&verify, "verify", false, "re-decode every frame and compare against the source samples")
	flag.IntVar(&blockSize, "block-size", 4096, "block size in samples")
	flag.Parse()
	for _, wavPath := range flag.Args() {
		if err := wav2flac(wavPath, force, verify, blockSize); err != nil {
			log.Fatalf("%+v", err)
		}
	}
}

func wav2flac(wavPath string, force, verify bool, blockSize int) error {
	r, err := os.Open(wavPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return errors.Errorf("invalid WAV file %q", wavPath)
	}
	sampleRate, nchannels, bps := int(dec.SampleRate), int(dec.NumChans), int(dec.BitDepth)

	flacPath := pathutil.TrimExt(wavPath) + ".flac"
	if !force && osutil.Exists(flacPath) {
		return errors.Errorf("FLAC file %q already present; use -f flag to force overwrite", flacPath)
	}
	w, err := os.Create(flacPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer w.Close()

	info := &meta.StreamInfo{
		SampleRate:    uint32(sampleRate),
		ChannelCount:  uint8(nchannels),
		BitsPerSample: uint8(bps),
	}
	opts := []flac.EncoderOption{flac.WithBlockSize(blockSize)}
	if verify {
		opts = append(opts, flac.WithVerify(true))
	}
	enc, err := flac.NewEncoder(w, info, opts...)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := dec.FwdToPCM(); err != nil {
		return errors.WithStack(err)
	}

	nsamplesPerBlock := nchannels * blockSize
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: nchannels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, nsamplesPerBlock),
		SourceBitDepth: bps,
	}

	for !dec.EOF() {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return errors.WithStack(err)
		}
		if n == 0 {
			break
		}
		nsamples := n / nchannels
		channels := make([][]int32, nchannels)
		for ch := range channels {
			channels[ch] = make([]int32, nsamples)
		}
		for i := 0; i < n; i++ {
			channels[i%nchannels][i/nchannels] = int32(buf.Data[i])
		}
		if err := enc.Write(channels); err != nil {
			return errors.WithStack(err)
		}
	}
	if err := enc.Close(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
