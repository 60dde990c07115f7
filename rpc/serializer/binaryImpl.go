package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dStmt/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: MsgType (1 byte) | flags (2 bytes, big endian) | present fields in flag order.
// Byte fields are prefixed with a uint32 length, lists with a uint32 count followed
// by the length prefixed elements.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey    uint16 = 1 << 0
	hasTopics uint16 = 1 << 1
	hasValue  uint16 = 1 << 2
	hasSource uint16 = 1 << 3
	hasValues uint16 = 1 << 4
	hasResult uint16 = 1 << 5
	hasReason uint16 = 1 << 6
	hasOk     uint16 = 1 << 7
	hasCode   uint16 = 1 << 8
	hasErr    uint16 = 1 << 9
	hasMeta   uint16 = 1 << 10
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags uint16 = 0
	pos := headerSize

	if msg.Key != nil {
		flags |= hasKey
		pos = putBytes(result, pos, msg.Key)
	}

	if msg.Topics != nil {
		flags |= hasTopics
		pos = putList(result, pos, msg.Topics)
	}

	if msg.Value != nil {
		flags |= hasValue
		pos = putBytes(result, pos, msg.Value)
	}

	if msg.Source != 0 {
		flags |= hasSource
		result[pos] = msg.Source
		pos += 1
	}

	if msg.Values != nil {
		flags |= hasValues
		pos = putList(result, pos, msg.Values)
	}

	if msg.Result != 0 {
		flags |= hasResult
		result[pos] = msg.Result
		pos += 1
	}

	if msg.Reason != "" {
		flags |= hasReason
		pos = putBytes(result, pos, []byte(msg.Reason))
	}

	// Ok is encoded by the flag alone
	if msg.Ok {
		flags |= hasOk
	}

	if msg.Code != 0 {
		flags |= hasCode
		result[pos] = msg.Code
		pos += 1
	}

	if msg.Err != "" {
		flags |= hasErr
		pos = putBytes(result, pos, []byte(msg.Err))
	}

	if msg.Meta != nil {
		flags |= hasMeta
		putBytes(result, pos, msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:headerSize], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:headerSize])
	r := reader{data: data, pos: headerSize}

	if flags&hasKey != 0 {
		msg.Key = r.readBytes("key")
	}
	if flags&hasTopics != 0 {
		msg.Topics = r.readList("topics")
	}
	if flags&hasValue != 0 {
		msg.Value = r.readBytes("value")
	}
	if flags&hasSource != 0 {
		msg.Source = r.readByte("source")
	}
	if flags&hasValues != 0 {
		msg.Values = r.readList("values")
	}
	if flags&hasResult != 0 {
		msg.Result = r.readByte("result")
	}
	if flags&hasReason != 0 {
		msg.Reason = string(r.readBytes("reason"))
	}
	msg.Ok = flags&hasOk != 0
	if flags&hasCode != 0 {
		msg.Code = r.readByte("code")
	}
	if flags&hasErr != 0 {
		msg.Err = string(r.readBytes("error"))
	}
	if flags&hasMeta != 0 {
		msg.Meta = r.readBytes("meta")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	if msg.Key != nil {
		size += 4 + len(msg.Key)
	}
	if msg.Topics != nil {
		size += listSize(msg.Topics)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Source != 0 {
		size += 1
	}
	if msg.Values != nil {
		size += listSize(msg.Values)
	}
	if msg.Result != 0 {
		size += 1
	}
	if msg.Reason != "" {
		size += 4 + len(msg.Reason)
	}
	if msg.Code != 0 {
		size += 1
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

func listSize(list [][]byte) int {
	size := 4 // element count
	for _, e := range list {
		size += 4 + len(e)
	}
	return size
}

// putBytes writes a length prefixed byte slice and returns the new position
func putBytes(buf []byte, pos int, data []byte) int {
	binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(data)))
	pos += 4
	copy(buf[pos:pos+len(data)], data)
	return pos + len(data)
}

// putList writes the element count followed by the length prefixed elements
func putList(buf []byte, pos int, list [][]byte) int {
	binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(list)))
	pos += 4
	for _, e := range list {
		pos = putBytes(buf, pos, e)
	}
	return pos
}

// reader reads fields from serialized data. The first error is kept and all
// following reads return zero values.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) readByte(field string) byte {
	if r.err != nil {
		return 0
	}
	if r.pos+1 > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return 0
	}
	v := r.data[r.pos]
	r.pos += 1
	return v
}

func (r *reader) readLen(field string) (int, bool) {
	if r.err != nil {
		return 0, false
	}
	if r.pos+4 > len(r.data) {
		r.err = fmt.Errorf("data too short for %s length", field)
		return 0, false
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return int(v), true
}

// readBytes reads a length prefixed byte slice, an empty slice is returned as non nil
func (r *reader) readBytes(field string) []byte {
	n, ok := r.readLen(field)
	if !ok {
		return nil
	}
	if n > len(r.data)-r.pos {
		r.err = fmt.Errorf("data too short for %s data", field)
		return nil
	}
	v := make([]byte, n)
	copy(v, r.data[r.pos:r.pos+n])
	r.pos += n
	return v
}

func (r *reader) readList(field string) [][]byte {
	n, ok := r.readLen(field)
	if !ok {
		return nil
	}
	// every element needs at least its length prefix
	if n > (len(r.data)-r.pos)/4 {
		r.err = fmt.Errorf("data too short for %s elements", field)
		return nil
	}
	list := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		e := r.readBytes(field)
		if r.err != nil {
			return nil
		}
		list = append(list, e)
	}
	return list
}
