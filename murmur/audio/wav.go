package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	riffHeaderLen  = 12
	chunkHeaderLen = 8

	pcmFormat     = 1
	bitsPerSample = 16
)

// wavFormat carries the fields of the "fmt " chunk we care about.
type wavFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= riffHeaderLen &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WAVE"))
}

// EncodeWAV serializes a clip as a mono PCM-16 WAV file.
func EncodeWAV(clip Clip) ([]byte, error) {
	if clip.Empty() {
		return nil, fmt.Errorf("cannot encode empty clip")
	}
	if clip.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", clip.SampleRate)
	}

	dataSize := uint32(len(clip.Samples) * 2)
	buf := bytes.NewBuffer(make([]byte, 0, 44+int(dataSize)))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, wavFormat{
		AudioFormat:   pcmFormat,
		NumChannels:   1,
		SampleRate:    uint32(clip.SampleRate),
		ByteRate:      uint32(clip.SampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: bitsPerSample,
	})

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)
	if err := binary.Write(buf, binary.LittleEndian, clip.Samples); err != nil {
		return nil, fmt.Errorf("failed to write sample data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV parses a PCM-16 WAV file into a clip. Stereo input is downmixed
// to mono by averaging channels. Chunks other than "fmt " and "data" are
// skipped, so files with LIST/INFO metadata decode fine.
func DecodeWAV(data []byte) (Clip, error) {
	if !IsWAV(data) {
		return Clip{}, fmt.Errorf("not a RIFF/WAVE file")
	}

	var format *wavFormat
	var pcm []byte

	offset := riffHeaderLen
	for offset+chunkHeaderLen <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + chunkHeaderLen
		if body+size > len(data) {
			return Clip{}, fmt.Errorf("chunk %q overruns file: %d bytes claimed, %d available", id, size, len(data)-body)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Clip{}, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			var f wavFormat
			if err := binary.Read(bytes.NewReader(data[body:body+16]), binary.LittleEndian, &f); err != nil {
				return Clip{}, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			format = &f
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word-aligned.
		offset = body + size + size%2
	}

	if format == nil {
		return Clip{}, fmt.Errorf("missing fmt chunk")
	}
	if pcm == nil {
		return Clip{}, fmt.Errorf("missing data chunk")
	}
	if format.AudioFormat != pcmFormat {
		return Clip{}, fmt.Errorf("unsupported audio format %d, want PCM", format.AudioFormat)
	}
	if format.BitsPerSample != bitsPerSample {
		return Clip{}, fmt.Errorf("unsupported sample width: %d bits, want %d", format.BitsPerSample, bitsPerSample)
	}
	if format.NumChannels != 1 && format.NumChannels != 2 {
		return Clip{}, fmt.Errorf("unsupported channel count: %d", format.NumChannels)
	}

	samples := make([]int16, len(pcm)/2)
	if err := binary.Read(bytes.NewReader(pcm[:len(samples)*2]), binary.LittleEndian, samples); err != nil {
		return Clip{}, fmt.Errorf("failed to read sample data: %w", err)
	}

	if format.NumChannels == 2 {
		mono := make([]int16, len(samples)/2)
		for i := range mono {
			mono[i] = int16((int32(samples[2*i]) + int32(samples[2*i+1])) / 2)
		}
		samples = mono
	}

	return Clip{Samples: samples, SampleRate: int(format.SampleRate)}, nil
}
