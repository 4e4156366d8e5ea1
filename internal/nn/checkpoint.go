package nn

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/mwiater/emotune/internal/device"
)

// Binary checkpoint layout:
//   - all data little-endian
//   - 4 magic bytes: 'E', 'T', major version, minor version
//   - uint32 input size, hidden size, layer count, class count
//   - for every parameter in Params order: uint32 rows, uint32 cols, rows*cols float32 values
//     in row-major order
var checkpointMagic = [4]byte{'E', 'T', 1, 0}

// Save writes the network parameters to w.
func (m *RNN) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(checkpointMagic[:]); err != nil {
		return err
	}
	header := []uint32{
		uint32(m.spec.InputDim),
		uint32(m.spec.HiddenDim),
		uint32(m.spec.NLayers),
		uint32(m.spec.NClasses),
	}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return err
	}
	buf := make([]byte, 4)
	for _, p := range m.params {
		r, c := p.Value.Dims()
		if err := binary.Write(bw, binary.LittleEndian, []uint32{uint32(r), uint32(c)}); err != nil {
			return err
		}
		for _, v := range p.Value.RawMatrix().Data {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// SaveFile overwrites path with the network parameters. The file is written next to path
// and renamed into place so a crash never leaves a truncated checkpoint.
func (m *RNN) SaveFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("create checkpoint: %w", err)
	}
	if err := m.Save(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace checkpoint %s: %w", path, err)
	}
	return nil
}

// Load reads a network written by Save. The loaded network has no dropout.
func Load(r io.Reader, dev device.Device) (*RNN, error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("read checkpoint header: %w", err)
	}
	if magic[0] != checkpointMagic[0] || magic[1] != checkpointMagic[1] {
		return nil, fmt.Errorf("checkpoint magic word does not match")
	}
	if magic[2] != checkpointMagic[2] {
		return nil, fmt.Errorf("checkpoint version %d.%d is not supported", magic[2], magic[3])
	}

	header := make([]uint32, 4)
	if err := binary.Read(br, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("read checkpoint topology: %w", err)
	}
	spec := Spec{
		InputDim:  int(header[0]),
		HiddenDim: int(header[1]),
		NLayers:   int(header[2]),
		NClasses:  int(header[3]),
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}

	m := newRNN(spec, dev, rand.New(rand.NewPCG(0, 0)))
	buf := make([]byte, 4)
	dims := make([]uint32, 2)
	for _, p := range m.params {
		if err := binary.Read(br, binary.LittleEndian, dims); err != nil {
			return nil, fmt.Errorf("read %s shape: %w", p.Name, err)
		}
		r, c := p.Value.Dims()
		if int(dims[0]) != r || int(dims[1]) != c {
			return nil, fmt.Errorf("%s has shape %dx%d, want %dx%d", p.Name, dims[0], dims[1], r, c)
		}
		data := p.Value.RawMatrix().Data
		for i := range data {
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, fmt.Errorf("read %s values: %w", p.Name, err)
			}
			data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
		}
	}
	return m, nil
}

// LoadFile reads a checkpoint from path.
func LoadFile(path string, dev device.Device) (*RNN, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()
	return Load(f, dev)
}
