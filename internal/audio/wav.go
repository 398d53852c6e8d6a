// Package audio encodes the PCM clips the gateway serves on its own.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// SilenceSampleRate is the sample rate of fallback clips.
const SilenceSampleRate = 22050

const headerLen = 44

// EncodeWAV encodes float32 PCM samples as 16-bit mono WAV.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	dataLen := len(samples) * 2
	totalLen := headerLen + dataLen

	buf := make([]byte, totalLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(totalLen-8))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		v := int16(max(-1.0, min(1.0, s)) * math.MaxInt16)
		binary.LittleEndian.PutUint16(buf[headerLen+i*2:], uint16(v))
	}
	return buf
}

// Silence returns d of silent mono WAV at SilenceSampleRate.
func Silence(d time.Duration) []byte {
	n := int(d.Seconds() * SilenceSampleRate)
	return EncodeWAV(make([]float32, n), SilenceSampleRate)
}

// WAVDuration reads the playback length of a 16-bit mono WAV produced by EncodeWAV.
func WAVDuration(wav []byte) (time.Duration, error) {
	if len(wav) < headerLen || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return 0, errors.New("not a wav stream")
	}
	rate := binary.LittleEndian.Uint32(wav[24:28])
	if rate == 0 {
		return 0, errors.New("zero sample rate")
	}
	samples := binary.LittleEndian.Uint32(wav[40:44]) / 2
	return time.Duration(samples) * time.Second / time.Duration(rate), nil
}
