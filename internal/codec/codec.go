package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/zeebo/xxh3"

	"github.com/quakeworks/srcmodel/internal/source"
)

// Extension is the conventional suffix of encoded group files.
const Extension = ".sgb"

var magic = [4]byte{'s', 'g', 'b', 0}

const (
	formatVersion  uint16 = 1
	payloadVersion byte   = 1
)

// Errors the decoder distinguishes for callers.
var (
	ErrBadMagic = errors.New("not an encoded source group")
	ErrVersion  = errors.New("unsupported format version")
	ErrChecksum = errors.New("record section checksum mismatch")
)

// EncodeGroup writes g to w.
//
// Layout: magic, format version, the group scalars (tectonic region type,
// name, source and rupture interdependence, group probability), the record
// count, the record section length, the records, and an xxh3 hash of the
// record section. Integers are little endian, strings length prefixed.
// Each record holds the source index, its rupture count and the payload.
// The group's cluster flag and occurrence model are conversion inputs and
// are not stored.
func EncodeGroup(w io.Writer, g *source.Group) error {
	var section []byte
	for i, src := range g.Sources() {
		payload, err := encodeSource(src)
		if err != nil {
			return fmt.Errorf("source %s: %w", src.ID(), err)
		}
		section = binary.LittleEndian.AppendUint32(section, uint32(i))
		section = binary.LittleEndian.AppendUint32(section, uint32(src.NumRuptures()))
		section = binary.LittleEndian.AppendUint32(section, uint32(len(payload)))
		section = append(section, payload...)
	}

	head := append([]byte(nil), magic[:]...)
	head = binary.LittleEndian.AppendUint16(head, formatVersion)
	head = appendString(head, g.TRT())
	head = appendString(head, g.Name())
	head = append(head, interdepByte(g.SrcInterdep()), interdepByte(g.RupInterdep()))
	prob, hasProb := g.GrpProbability()
	head = append(head, boolByte(hasProb))
	head = binary.LittleEndian.AppendUint64(head, math.Float64bits(prob))
	head = binary.LittleEndian.AppendUint32(head, uint32(g.Len()))
	head = binary.LittleEndian.AppendUint32(head, uint32(len(section)))

	sum := binary.LittleEndian.AppendUint64(nil, xxh3.Hash(section))
	for _, chunk := range [][]byte{head, section, sum} {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// DecodeGroup reads one group from r. The checksum is verified before any
// payload is parsed. Scaling relations and occurrence models are resolved
// against the builtin registries; the group's tectonic region type is
// stamped onto every decoded source.
func DecodeGroup(r io.Reader) (*source.Group, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	c := &cursor{buf: raw}
	if m := c.take(4); c.err != nil || [4]byte(m) != magic {
		return nil, ErrBadMagic
	}
	if v := c.u16(); c.err == nil && v != formatVersion {
		return nil, fmt.Errorf("%w %d, can read %d", ErrVersion, v, formatVersion)
	}
	trt := c.str()
	name := c.str()
	srcDepB, rupDepB := c.u8(), c.u8()
	hasProb := c.u8() == 1
	probBits := c.u64()
	count := c.u32()
	section := c.take(int(c.u32()))
	sum := c.u64()
	if c.err != nil {
		return nil, fmt.Errorf("truncated input: %w", c.err)
	}
	if c.rest() != 0 {
		return nil, fmt.Errorf("%d trailing byte(s) after the checksum", c.rest())
	}
	if xxh3.Hash(section) != sum {
		return nil, ErrChecksum
	}

	srcDep, err := interdepOf(srcDepB)
	if err != nil {
		return nil, err
	}
	rupDep, err := interdepOf(rupDepB)
	if err != nil {
		return nil, err
	}
	var grpProb *float64
	if hasProb {
		p := math.Float64frombits(probBits)
		grpProb = &p
	}
	g, err := source.NewGroup(trt, source.GroupOptions{
		Name:           name,
		SrcInterdep:    srcDep,
		RupInterdep:    rupDep,
		GrpProbability: grpProb,
	})
	if err != nil {
		return nil, err
	}

	rc := &cursor{buf: section}
	for i := 0; i < int(count); i++ {
		idx := rc.u32()
		ruptures := rc.u32()
		payload := rc.take(int(rc.u32()))
		if rc.err != nil {
			return nil, fmt.Errorf("record %d: %w", i, rc.err)
		}
		if int(idx) != i {
			return nil, fmt.Errorf("record %d carries index %d", i, idx)
		}
		src, err := decodeSource(payload)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		src.SetTRT(trt)
		if n := src.NumRuptures(); n != int(ruptures) {
			return nil, fmt.Errorf("source %s: %d ruptures on record, %d rebuilt", src.ID(), ruptures, n)
		}
		if _, err := g.Update(src); err != nil {
			return nil, err
		}
	}
	if rc.rest() != 0 {
		return nil, fmt.Errorf("%d trailing byte(s) after the last record", rc.rest())
	}
	return g, nil
}

// EncodeFile writes g to the file at path.
func EncodeFile(path string, g *source.Group) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeGroup(f, g); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// DecodeFile reads the group stored at path.
func DecodeFile(path string) (*source.Group, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := DecodeGroup(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func appendString(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func interdepByte(dep source.Interdep) byte {
	if dep == source.Mutex {
		return 1
	}
	return 0
}

func interdepOf(b byte) (source.Interdep, error) {
	switch b {
	case 0:
		return source.Indep, nil
	case 1:
		return source.Mutex, nil
	}
	return "", fmt.Errorf("unknown interdependence byte %d", b)
}

// cursor walks a byte slice with a sticky error, so framing reads chain
// without per-call checks.
type cursor struct {
	buf []byte
	off int
	err error
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || n > len(c.buf)-c.off {
		c.err = io.ErrUnexpectedEOF
		return nil
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) u8() byte {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (c *cursor) u32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (c *cursor) u64() uint64 {
	b := c.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (c *cursor) str() string {
	return string(c.take(int(c.u32())))
}

func (c *cursor) rest() int { return len(c.buf) - c.off }
