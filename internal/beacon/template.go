// Package beacon detects the periodic reference pulse in the synced signal
// and maintains the beacon timeline (index and sample-of-arrival).
package beacon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
)

// templateMagic identifies a .tpl template file.
var templateMagic = []byte("CORXTPL\x00")

// LoadTemplate reads a beacon template from a .tpl file: magic, uint32
// little-endian sample count, float32 samples. Length constraints are
// enforced by the correlator, not here.
func LoadTemplate(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTemplate(f)
}

// ReadTemplate decodes a template stream.
func ReadTemplate(r io.Reader) ([]float32, error) {
	magic := make([]byte, len(templateMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("template: read magic: %w", err)
	}
	if !bytes.Equal(magic, templateMagic) {
		return nil, fmt.Errorf("template: bad magic %q", magic)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("template: read count: %w", err)
	}
	samples := make([]float32, count)
	if err := binary.Read(r, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("template: read samples: %w", err)
	}
	return samples, nil
}

// SaveTemplate writes a template to path in .tpl format.
func SaveTemplate(path string, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTemplate(f, samples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTemplate encodes a template stream.
func WriteTemplate(w io.Writer, samples []float32) error {
	if _, err := w.Write(templateMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(samples))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, samples)
}

// GenerateTemplate synthesizes a deterministic pseudo-random chip sequence
// under a raised-cosine envelope. The same waveform is used by mktemplate
// and by the simulated source, so a template file and a simulated beacon
// always agree.
func GenerateTemplate(length int, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float32, length)
	for i := range out {
		chip := float32(1)
		if rng.Intn(2) == 0 {
			chip = -1
		}
		env := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(length-1)))
		out[i] = chip * float32(env)
	}
	return out
}
