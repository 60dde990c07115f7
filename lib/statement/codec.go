package statement

import (
	"encoding/binary"
	"fmt"
)

// Field tags of the binary encoding. Fields are written in ascending tag order.
const (
	tagProof         byte = 0
	tagDecryptionKey byte = 1
	tagPriority      byte = 2
	tagChannel       byte = 3
	tagTopic1        byte = 4 // tags 4..7 hold the topics
	tagData          byte = 8
)

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Encode returns the binary encoding of the statement.
//
// Layout:
//   - uvarint: number of fields
//   - per field: 1 byte tag followed by the field payload
//
// Proofs are encoded as 1 byte kind followed by the kind specific fields,
// priority as u32 (little endian) and data as u32 (little endian) length prefix plus bytes.
// Statements with more than MaxTopics topics have no valid encoding, see CheckTopics.
func (s *Statement) Encode() []byte {
	buf := make([]byte, 0, s.sizeHint())
	buf = binary.AppendUvarint(buf, uint64(s.fieldCount()))

	if s.Proof != nil {
		buf = append(buf, tagProof, byte(s.Proof.Kind))
		switch s.Proof.Kind {
		case ProofSecp256k1:
			buf = append(buf, s.Proof.Signature[:]...)
			buf = append(buf, s.Proof.Signer[:]...)
		case ProofOnChain:
			buf = append(buf, s.Proof.Who[:]...)
			buf = append(buf, s.Proof.BlockHash[:]...)
			buf = binary.LittleEndian.AppendUint64(buf, s.Proof.EventIndex)
		}
	}
	if s.DecryptionKey != nil {
		buf = append(buf, tagDecryptionKey)
		buf = append(buf, s.DecryptionKey[:]...)
	}
	if s.Priority != nil {
		buf = append(buf, tagPriority)
		buf = binary.LittleEndian.AppendUint32(buf, *s.Priority)
	}
	if s.Channel != nil {
		buf = append(buf, tagChannel)
		buf = append(buf, s.Channel[:]...)
	}
	for i, t := range s.Topics {
		buf = append(buf, tagTopic1+byte(i))
		buf = append(buf, t[:]...)
	}
	if s.Data != nil {
		buf = append(buf, tagData)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s.Data)))
		buf = append(buf, s.Data...)
	}
	return buf
}

// fieldCount returns the number of fields present in the statement
func (s *Statement) fieldCount() int {
	n := len(s.Topics)
	if s.Proof != nil {
		n++
	}
	if s.DecryptionKey != nil {
		n++
	}
	if s.Priority != nil {
		n++
	}
	if s.Channel != nil {
		n++
	}
	if s.Data != nil {
		n++
	}
	return n
}

// sizeHint returns an upper bound of the encoded size
func (s *Statement) sizeHint() int {
	size := binary.MaxVarintLen64 + 2 + 65 + 33 + 3*33 + 5 + len(s.Topics)*33
	if s.Data != nil {
		size += 5 + len(s.Data)
	}
	return size
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// decoder is a small cursor over the input
type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) take(n int, what string) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, fmt.Errorf("data too short for %s", what)
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readByte(what string) (byte, error) {
	b, err := d.take(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) array32(what string) ([32]byte, error) {
	var out [32]byte
	b, err := d.take(32, what)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// Decode parses a statement from its binary encoding.
// The whole input must be consumed.
func Decode(data []byte) (*Statement, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("invalid field count")
	}
	if count > uint64(tagData)+1 {
		return nil, fmt.Errorf("too many fields: %d", count)
	}

	d := &decoder{data: data, pos: n}
	s := &Statement{}
	lastTag := -1

	for i := uint64(0); i < count; i++ {
		tag, err := d.readByte("field tag")
		if err != nil {
			return nil, err
		}
		if int(tag) <= lastTag {
			return nil, fmt.Errorf("field tag %d out of order", tag)
		}
		lastTag = int(tag)

		switch {
		case tag == tagProof:
			if s.Proof, err = decodeProof(d); err != nil {
				return nil, err
			}
		case tag == tagDecryptionKey:
			k, err := d.array32("decryption key")
			if err != nil {
				return nil, err
			}
			s.DecryptionKey = (*DecryptionKey)(&k)
		case tag == tagPriority:
			b, err := d.take(4, "priority")
			if err != nil {
				return nil, err
			}
			p := binary.LittleEndian.Uint32(b)
			s.Priority = &p
		case tag == tagChannel:
			c, err := d.array32("channel")
			if err != nil {
				return nil, err
			}
			s.Channel = (*Channel)(&c)
		case tag >= tagTopic1 && tag < tagTopic1+MaxTopics:
			// topics must be contiguous, starting with the first
			if int(tag-tagTopic1) != len(s.Topics) {
				return nil, fmt.Errorf("missing topic before topic %d", tag-tagTopic1+1)
			}
			t, err := d.array32("topic")
			if err != nil {
				return nil, err
			}
			s.Topics = append(s.Topics, t)
		case tag == tagData:
			b, err := d.take(4, "data length")
			if err != nil {
				return nil, err
			}
			l := binary.LittleEndian.Uint32(b)
			payload, err := d.take(int(l), "data")
			if err != nil {
				return nil, err
			}
			s.Data = make([]byte, l)
			copy(s.Data, payload)
		default:
			return nil, fmt.Errorf("unknown field tag %d", tag)
		}
	}

	if d.pos != len(data) {
		return nil, fmt.Errorf("%d trailing bytes", len(data)-d.pos)
	}
	return s, nil
}

// decodeProof reads a proof (without the field tag)
func decodeProof(d *decoder) (*Proof, error) {
	kind, err := d.readByte("proof kind")
	if err != nil {
		return nil, err
	}
	p := &Proof{Kind: ProofKind(kind)}
	switch p.Kind {
	case ProofSecp256k1:
		sig, err := d.take(65, "signature")
		if err != nil {
			return nil, err
		}
		copy(p.Signature[:], sig)
		signer, err := d.take(33, "signer")
		if err != nil {
			return nil, err
		}
		copy(p.Signer[:], signer)
	case ProofOnChain:
		if p.Who, err = d.array32("proof account"); err != nil {
			return nil, err
		}
		if p.BlockHash, err = d.array32("proof block hash"); err != nil {
			return nil, err
		}
		b, err := d.take(8, "event index")
		if err != nil {
			return nil, err
		}
		p.EventIndex = binary.LittleEndian.Uint64(b)
	default:
		return nil, fmt.Errorf("unknown proof kind %d", kind)
	}
	return p, nil
}
