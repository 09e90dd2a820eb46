package model

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/swdee/go-platenet"
	"github.com/x448/float16"
	"gopkg.in/yaml.v3"
)

const (
	// checkpointVersion is the manifest format version written by Save
	checkpointVersion = 1
	manifestName      = "manifest.yaml"

	precisionFloat64 = "float64"
	precisionFloat16 = "float16"
)

// checkpointManifest is the YAML index stored at the root of a checkpoint
type checkpointManifest struct {
	Version   int          `yaml:"version"`
	Network   Config       `yaml:"network"`
	Precision string       `yaml:"precision"`
	Params    []paramEntry `yaml:"params"`
}

// paramEntry locates one parameter blob in the archive
type paramEntry struct {
	Name  string `yaml:"name"`
	Shape []int  `yaml:"shape"`
	File  string `yaml:"file"`
}

// saveOptions holds the Save settings
type saveOptions struct {
	half bool
}

// SaveOption configures Save
type SaveOption func(*saveOptions)

// WithHalfPrecision stores weights as IEEE 754 half precision floats,
// quartering the file size at the cost of precision
func WithHalfPrecision() SaveOption {
	return func(o *saveOptions) {
		o.half = true
	}
}

// Save writes the classifier topology and weights as a zip archive
func Save(w io.Writer, c *Classifier, opts ...SaveOption) error {

	var so saveOptions

	for _, opt := range opts {
		opt(&so)
	}

	m := checkpointManifest{
		Version:   checkpointVersion,
		Network:   c.cfg,
		Precision: precisionFloat64,
	}

	if so.half {
		m.Precision = precisionFloat16
	}

	zw := zip.NewWriter(w)

	for _, p := range c.params.list {
		entry := paramEntry{
			Name:  p.Name,
			Shape: []int(p.Shape),
			File:  "params/" + p.Name + ".bin",
		}

		fw, err := zw.Create(entry.File)

		if err != nil {
			return fmt.Errorf("error adding %s to checkpoint: %w", p.Name, err)
		}

		if err := writeValues(fw, p.Data, so.half); err != nil {
			return fmt.Errorf("error writing %s: %w", p.Name, err)
		}

		m.Params = append(m.Params, entry)
	}

	data, err := yaml.Marshal(&m)

	if err != nil {
		return fmt.Errorf("error encoding checkpoint manifest: %w", err)
	}

	fw, err := zw.Create(manifestName)

	if err != nil {
		return fmt.Errorf("error adding checkpoint manifest: %w", err)
	}

	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("error writing checkpoint manifest: %w", err)
	}

	return zw.Close()
}

// SaveFile writes the checkpoint to path.  The file is written next to the
// destination and renamed into place so readers never see a partial file.
func SaveFile(path string, c *Classifier, opts ...SaveOption) error {

	f, err := os.CreateTemp(filepath.Dir(path), ".checkpoint-*")

	if err != nil {
		return fmt.Errorf("error creating checkpoint file: %w", err)
	}

	tmp := f.Name()

	if err := Save(f, c, opts...); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("error closing checkpoint file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("error moving checkpoint into place: %w", err)
	}

	return nil
}

// Load reads a checkpoint and returns a classifier with its topology and
// weights
func Load(r io.ReaderAt, size int64) (*Classifier, error) {

	zr, err := zip.NewReader(r, size)

	if err != nil {
		return nil, fmt.Errorf("error opening checkpoint: %w", err)
	}

	m, err := readManifest(zr)

	if err != nil {
		return nil, err
	}

	c, err := New(m.Network)

	if err != nil {
		return nil, err
	}

	if err := c.loadParams(zr, m); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadFile reads a checkpoint from path
func LoadFile(path string) (*Classifier, error) {

	f, err := os.Open(path)

	if err != nil {
		return nil, fmt.Errorf("error opening checkpoint: %w", err)
	}

	defer f.Close()

	info, err := f.Stat()

	if err != nil {
		return nil, fmt.Errorf("error reading checkpoint: %w", err)
	}

	return Load(f, info.Size())
}

// LoadWeights populates the classifier's parameters by name from a
// checkpoint.  The checkpoint topology must match the classifier's.
func (c *Classifier) LoadWeights(r io.ReaderAt, size int64) error {

	zr, err := zip.NewReader(r, size)

	if err != nil {
		return fmt.Errorf("error opening checkpoint: %w", err)
	}

	m, err := readManifest(zr)

	if err != nil {
		return err
	}

	if !m.Network.equal(c.cfg) {
		return fmt.Errorf("%w: checkpoint network %+v does not match model %+v",
			platenet.ErrShapeMismatch, m.Network, c.cfg)
	}

	return c.loadParams(zr, m)
}

// readManifest decodes and checks the checkpoint manifest
func readManifest(zr *zip.Reader) (*checkpointManifest, error) {

	data, err := readZipFile(zr, manifestName)

	if err != nil {
		return nil, err
	}

	var m checkpointManifest

	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("error decoding checkpoint manifest: %w", err)
	}

	if m.Version != checkpointVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", m.Version)
	}

	if m.Precision != precisionFloat64 && m.Precision != precisionFloat16 {
		return nil, fmt.Errorf("unsupported checkpoint precision %q", m.Precision)
	}

	return &m, nil
}

// loadParams fills every parameter from the archive.  All values are decoded
// before any parameter is written so a failed load leaves weights untouched.
func (c *Classifier) loadParams(zr *zip.Reader, m *checkpointManifest) error {

	entries := make(map[string]paramEntry, len(m.Params))

	for _, e := range m.Params {
		entries[e.Name] = e
	}

	decoded := make([][]float64, len(c.params.list))

	for i, p := range c.params.list {
		e, ok := entries[p.Name]

		if !ok {
			return fmt.Errorf("%w: checkpoint has no parameter %s",
				platenet.ErrShapeMismatch, p.Name)
		}

		if !shapeEqual(e.Shape, p.Shape) {
			return fmt.Errorf("%w: parameter %s has shape %v, want %v",
				platenet.ErrShapeMismatch, p.Name, e.Shape, []int(p.Shape))
		}

		data, err := readZipFile(zr, e.File)

		if err != nil {
			return err
		}

		vals, err := decodeValues(data, len(p.Data), m.Precision == precisionFloat16)

		if err != nil {
			return fmt.Errorf("parameter %s: %w", p.Name, err)
		}

		decoded[i] = vals
	}

	for i, p := range c.params.list {
		copy(p.Data, decoded[i])
	}

	return nil
}

// readZipFile returns the contents of the named archive member
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {

	f, err := zr.Open(name)

	if err != nil {
		return nil, fmt.Errorf("error opening %s in checkpoint: %w", name, err)
	}

	defer f.Close()

	data, err := io.ReadAll(f)

	if err != nil {
		return nil, fmt.Errorf("error reading %s in checkpoint: %w", name, err)
	}

	return data, nil
}

// writeValues encodes values little endian as float64 or float16
func writeValues(w io.Writer, vals []float64, half bool) error {

	if !half {
		return binary.Write(w, binary.LittleEndian, vals)
	}

	bits := make([]uint16, len(vals))

	for i, v := range vals {
		bits[i] = float16.Fromfloat32(float32(v)).Bits()
	}

	return binary.Write(w, binary.LittleEndian, bits)
}

// decodeValues decodes n little endian values
func decodeValues(data []byte, n int, half bool) ([]float64, error) {

	size := 8

	if half {
		size = 2
	}

	if len(data) != n*size {
		return nil, fmt.Errorf("%w: blob has %d bytes, want %d",
			platenet.ErrShapeMismatch, len(data), n*size)
	}

	vals := make([]float64, n)
	r := bytes.NewReader(data)

	if half {
		var b [2]byte

		for i := range vals {
			_, _ = io.ReadFull(r, b[:])
			vals[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(b[:])).Float32())
		}

		return vals, nil
	}

	var b [8]byte

	for i := range vals {
		_, _ = io.ReadFull(r, b[:])
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[:]))
	}

	return vals, nil
}

// shapeEqual compares a stored shape with a parameter shape
func shapeEqual(a []int, b []int) bool {

	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
