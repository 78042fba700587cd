package ionscore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/peakindex"
)

const (
	codecMagic   = "PTBN"
	codecVersion = 1
)

// ErrCorrupt is returned for network files that cannot be decoded.
var ErrCorrupt = errors.New("corrupt network file")

// WriteNetwork encodes net in the little-endian network file format.
func WriteNetwork(w io.Writer, net *Network) error {
	bw := bufio.NewWriter(w)
	e := &encoder{w: bw}

	e.bytes([]byte(codecMagic))
	e.put(uint16(codecVersion))
	e.str(net.Name)
	var flags uint8
	if net.Cuts {
		flags |= 1
	}
	if net.GlobalNoise {
		flags |= 2
	}
	e.put(flags)
	e.put(int32(net.Scheme))
	e.put(net.IntensityRadius)
	e.put(net.HalfIntensityRadius)
	e.ints(net.RandomCounts)

	e.put(uint16(len(net.Nodes)))
	for _, n := range net.Nodes {
		e.str(n.Name)
		e.put(uint8(n.Kind))
		e.put(int32(n.Flag))
		e.put(uint8(n.Ion))
		e.put(n.MassOffset)
		e.put(int32(n.ValueCount))
		e.put(uint16(len(n.Parents)))
		for _, p := range n.Parents {
			e.put(uint16(p))
		}
		e.ints(n.Counts)
		e.put(uint32(len(n.LogProbs)))
		for _, lp := range n.LogProbs {
			e.put(lp)
		}
	}
	if e.err != nil {
		return e.err
	}
	return bw.Flush()
}

// ReadNetwork decodes a network file. Node kinds, flags and parents are
// validated; tables are accepted at any size up to MaxTableSize, so a table that
// disagrees with its node surfaces as a StructuralError when scored.
func ReadNetwork(r io.Reader) (*Network, error) {
	d := &decoder{r: bufio.NewReader(r)}

	magic := d.bytes(len(codecMagic))
	if d.err != nil {
		return nil, d.fail("header")
	}
	if string(magic) != codecMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, magic)
	}
	var version uint16
	d.get(&version)
	if d.err == nil && version != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}

	net := &Network{}
	net.Name = d.str()
	var flags uint8
	d.get(&flags)
	net.Cuts = flags&1 != 0
	net.GlobalNoise = flags&2 != 0
	var scheme int32
	d.get(&scheme)
	net.Scheme = int(scheme)
	d.get(&net.IntensityRadius)
	d.get(&net.HalfIntensityRadius)
	randomCounts := d.ints()
	if d.err != nil {
		return nil, d.fail("header")
	}

	levels, err := peakindex.LevelCount(net.Scheme)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	net.MinLevel = levels - 1
	net.RandomCounts = make([]int, levels)
	copy(net.RandomCounts, randomCounts)
	net.RandomScores = randomScores(net.RandomCounts)

	var count uint16
	d.get(&count)
	for i := 0; i < int(count) && d.err == nil; i++ {
		n := &Node{}
		n.Name = d.str()
		var kind, ion uint8
		var flag, valueCount int32
		d.get(&kind)
		d.get(&flag)
		d.get(&ion)
		d.get(&n.MassOffset)
		d.get(&valueCount)
		n.Kind, n.Flag, n.Ion, n.ValueCount = Kind(kind), int(flag), core.IonKind(ion), int(valueCount)

		var parents uint16
		d.get(&parents)
		if int(parents) > MaxParents {
			return nil, fmt.Errorf("%w: node %s has %d parents", ErrCorrupt, n.Name, parents)
		}
		n.Parents = make([]int, parents)
		for j := range n.Parents {
			var p uint16
			d.get(&p)
			n.Parents[j] = int(p)
		}
		n.Counts = d.ints()

		var size uint32
		d.get(&size)
		if d.err != nil {
			break
		}
		if size == 0 || size > MaxTableSize {
			return nil, fmt.Errorf("%w: node %s has a table of %d entries", ErrCorrupt, n.Name, size)
		}
		n.LogProbs = make([]float64, size)
		for j := range n.LogProbs {
			d.get(&n.LogProbs[j])
		}
		if d.err != nil {
			break
		}

		if err := net.attach(n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		n.Strides = strides(net.Nodes, n)
	}
	if d.err != nil {
		return nil, d.fail("node table")
	}
	net.finish()
	return net, nil
}

type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) put(v any) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

func (e *encoder) bytes(b []byte) {
	if e.err == nil {
		_, e.err = e.w.Write(b)
	}
}

func (e *encoder) str(s string) {
	e.put(uint16(len(s)))
	e.bytes([]byte(s))
}

func (e *encoder) ints(values []int) {
	e.put(uint32(len(values)))
	for _, v := range values {
		e.put(int32(v))
	}
}

type decoder struct {
	r   io.Reader
	err error
}

func (d *decoder) get(v any) {
	if d.err == nil {
		d.err = binary.Read(d.r, binary.LittleEndian, v)
	}
}

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	b := make([]byte, n)
	_, d.err = io.ReadFull(d.r, b)
	return b
}

func (d *decoder) str() string {
	var n uint16
	d.get(&n)
	return string(d.bytes(int(n)))
}

func (d *decoder) ints() []int {
	var n uint32
	d.get(&n)
	if d.err != nil {
		return nil
	}
	if n > math.MaxUint16*16 {
		d.err = fmt.Errorf("count array of %d entries", n)
		return nil
	}
	if n == 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		var v int32
		d.get(&v)
		out[i] = int(v)
	}
	return out
}

func (d *decoder) fail(section string) error {
	if errors.Is(d.err, io.EOF) || errors.Is(d.err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s", ErrCorrupt, section)
	}
	return fmt.Errorf("%w: %s: %v", ErrCorrupt, section, d.err)
}
