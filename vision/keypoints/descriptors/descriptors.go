// Package descriptors contains the packed binary descriptors attached to keypoints and the bit
// difference (Hamming) distance used to compare them.
package descriptors

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/steakknife/hamming"

	"go.viam.com/stitch/utils"
)

// ErrLengthMismatch is returned when two descriptors of different bit lengths are compared.
var ErrLengthMismatch = errors.New("descriptors must have the same length")

// Descriptor is a fixed-length binary vector packed 64 bits per word. A 256 bit ORB descriptor is
// 4 words. When the length is not a multiple of 64 the unused high bits of the last word are zero.
type Descriptor struct {
	words []uint64
	bits  int
}

// Descriptors is a list of descriptors, index-aligned with the keypoints they describe.
type Descriptors []Descriptor

// FromWords creates a descriptor of 64*len(words) bits. The words are copied.
func FromWords(words ...uint64) Descriptor {
	return Descriptor{append([]uint64(nil), words...), 64 * len(words)}
}

// Words returns a copy of the packed words.
func (d Descriptor) Words() []uint64 {
	return append([]uint64(nil), d.words...)
}

// BitLength returns the number of bits held by the descriptor.
func (d Descriptor) BitLength() int {
	return d.bits
}

// Complement returns the bitwise complement of d. Padding bits stay zero.
func (d Descriptor) Complement() Descriptor {
	out := Descriptor{make([]uint64, len(d.words)), d.bits}
	for i, w := range d.words {
		out.words[i] = ^w
	}
	if tail := d.bits % 64; tail != 0 {
		out.words[len(out.words)-1] &= 1<<tail - 1
	}
	return out
}

// HammingDistance returns the number of bit positions at which d1 and d2 differ.
func HammingDistance(d1, d2 Descriptor) (int, error) {
	if d1.bits != d2.bits {
		return -1, errors.Wrapf(ErrLengthMismatch, "%d bits vs %d bits", d1.bits, d2.bits)
	}
	dist := 0
	for i := range d1.words {
		dist += hamming.CountBitsUint64(d1.words[i] ^ d2.words[i])
	}
	return dist, nil
}

// BitLength returns the common bit length of the set, or an error if lengths differ. An empty set
// has length 0.
func (ds Descriptors) BitLength() (int, error) {
	if len(ds) == 0 {
		return 0, nil
	}
	n := ds[0].bits
	for i, d := range ds {
		if d.bits != n {
			return -1, errors.Wrapf(ErrLengthMismatch, "descriptor %d has %d bits, expected %d", i, d.bits, n)
		}
	}
	return n, nil
}

// PairwiseHammingDistances computes the len(d1) x len(d2) table of Hamming distances. Rows are
// computed in parallel. Either input may be empty, in which case the table has no rows or empty
// rows.
func PairwiseHammingDistances(ctx context.Context, d1, d2 Descriptors) ([][]int, error) {
	len1, err := d1.BitLength()
	if err != nil {
		return nil, err
	}
	len2, err := d2.BitLength()
	if err != nil {
		return nil, err
	}
	distances := make([][]int, len(d1))
	if len(d1) == 0 || len(d2) == 0 {
		for i := range distances {
			distances[i] = []int{}
		}
		return distances, nil
	}
	if len1 != len2 {
		return nil, errors.Wrapf(ErrLengthMismatch, "first set has %d bits, second set has %d bits", len1, len2)
	}

	err = utils.ParallelForEach(ctx, len(d1), func(i int) {
		row := make([]int, len(d2))
		for j := range d2 {
			// lengths were checked above
			row[j], _ = HammingDistance(d1[i], d2[j])
		}
		distances[i] = row
	})
	if err != nil {
		return nil, err
	}
	return distances, nil
}

// FromBytes packs a byte descriptor (e.g. the 32 bytes of an ORB descriptor) into words, little
// endian within each word. Any byte length is accepted: the last word is zero padded.
func FromBytes(b []byte) Descriptor {
	d := Descriptor{make([]uint64, (len(b)+7)/8), 8 * len(b)}
	for i := range d.words {
		var word [8]byte
		copy(word[:], b[8*i:])
		d.words[i] = binary.LittleEndian.Uint64(word[:])
	}
	return d
}

// Bytes is the inverse of FromBytes.
func (d Descriptor) Bytes() []byte {
	b := make([]byte, 8*len(d.words))
	for i, w := range d.words {
		binary.LittleEndian.PutUint64(b[8*i:], w)
	}
	return b[:(d.bits+7)/8]
}

// ParseHex parses a hex encoded byte descriptor.
func ParseHex(s string) (Descriptor, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Descriptor{}, errors.Wrap(err, "invalid hex descriptor")
	}
	return FromBytes(b), nil
}

// String returns the hex encoding of the descriptor bytes.
func (d Descriptor) String() string {
	return hex.EncodeToString(d.Bytes())
}

// MarshalJSON encodes the descriptor as a hex string.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a hex string descriptor.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHex(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
