package backend

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/chips"
	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/core"
)

var proofMagic = [4]byte{'Z', 'P', 'C', '1'}

const digestSize = core.DigestSize

// Opening is one committed row with its authentication path
type Opening struct {
	Index int
	Row   []fr.Element
	Path  []hash.Digest
}

// Proof is the commitment backend's chunk proof
type Proof struct {
	K        int
	Root     hash.Digest
	Seal     hash.Digest
	Openings []Opening
}

// MarshalBinary encodes the proof:
//
//	magic(4) k(1) root seal count(4) { index(4) row(columns·32) path(k·40) }*
func (p *Proof) MarshalBinary() ([]byte, error) {
	size := 4 + 1 + 2*digestSize + 4 +
		len(p.Openings)*(4+chips.NumColumns*fr.Bytes+p.K*digestSize)
	buf := make([]byte, 0, size)
	buf = append(buf, proofMagic[:]...)
	buf = append(buf, byte(p.K))
	buf = append(buf, core.DigestBytes(p.Root)...)
	buf = append(buf, core.DigestBytes(p.Seal)...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(p.Openings)))
	for _, o := range p.Openings {
		if len(o.Row) != chips.NumColumns || len(o.Path) != p.K {
			return nil, fmt.Errorf("opening %d has %d cells and %d siblings", o.Index, len(o.Row), len(o.Path))
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(o.Index))
		for i := range o.Row {
			b := o.Row[i].Bytes()
			buf = append(buf, b[:]...)
		}
		for _, d := range o.Path {
			buf = append(buf, core.DigestBytes(d)...)
		}
	}
	return buf, nil
}

// decoder reads a proof and fails on the first malformed field
type decoder struct {
	buf []byte
	off int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.buf)-d.off < n {
		return nil, fmt.Errorf("truncated at byte %d", d.off)
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) digest() (hash.Digest, error) {
	b, err := d.take(digestSize)
	if err != nil {
		return hash.Digest{}, err
	}
	return core.DigestFromBytes(b)
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// UnmarshalProof decodes a proof written by MarshalBinary. Every field
// element must be canonical, indices strictly ascending and within the
// table, and no trailing bytes are allowed.
func UnmarshalProof(data []byte) (*Proof, error) {
	fail := func(err error) (*Proof, error) {
		return nil, core.Wrap(core.ErrInvalidProof, err, "malformed proof")
	}

	d := &decoder{buf: data}
	magic, err := d.take(len(proofMagic))
	if err != nil {
		return fail(err)
	}
	if [4]byte(magic) != proofMagic {
		return fail(fmt.Errorf("bad magic %x", magic))
	}
	kb, err := d.take(1)
	if err != nil {
		return fail(err)
	}
	p := &Proof{K: int(kb[0])}
	if p.K > 30 {
		return fail(fmt.Errorf("circuit size k=%d", p.K))
	}
	if p.Root, err = d.digest(); err != nil {
		return fail(err)
	}
	if p.Seal, err = d.digest(); err != nil {
		return fail(err)
	}
	count, err := d.u32()
	if err != nil {
		return fail(err)
	}
	openingSize := 4 + chips.NumColumns*fr.Bytes + p.K*digestSize
	if uint64(count)*uint64(openingSize) != uint64(len(data)-d.off) {
		return fail(fmt.Errorf("%d openings do not match %d remaining bytes", count, len(data)-d.off))
	}

	p.Openings = make([]Opening, count)
	prev := -1
	for i := range p.Openings {
		idx, err := d.u32()
		if err != nil {
			return fail(err)
		}
		o := Opening{Index: int(idx), Row: make([]fr.Element, chips.NumColumns), Path: make([]hash.Digest, p.K)}
		if o.Index <= prev || o.Index >= 1<<p.K {
			return fail(fmt.Errorf("opening %d: index %d out of order or range", i, o.Index))
		}
		prev = o.Index
		for j := range o.Row {
			b, err := d.take(fr.Bytes)
			if err != nil {
				return fail(err)
			}
			if err := o.Row[j].SetBytesCanonical(b); err != nil {
				return fail(fmt.Errorf("opening %d cell %d: %w", i, j, err))
			}
		}
		for j := range o.Path {
			if o.Path[j], err = d.digest(); err != nil {
				return fail(fmt.Errorf("opening %d sibling %d: %w", i, j, err))
			}
		}
		p.Openings[i] = o
	}
	return p, nil
}
