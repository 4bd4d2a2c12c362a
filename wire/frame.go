// Package wire implements the Selium frame codec: a stateless,
// length-prefixed, tag-discriminated framing format used on every BiStream.
//
// Wire layout of a single frame:
//
//	length : u32 big-endian, = N
//	tag    : u8
//	body   : N-1 bytes, variant-specific
//
// Decoder.Decode blocks on its underlying reader until a complete frame has
// arrived; callers drive it from a dedicated read goroutine per stream.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FrameTag discriminates the Frame union.
type FrameTag uint8

const (
	TagRegisterPublisher  FrameTag = 0
	TagRegisterSubscriber FrameTag = 1
	TagMessage            FrameTag = 2
	TagAck                FrameTag = 3
	TagError              FrameTag = 4
)

func (t FrameTag) String() string {
	switch t {
	case TagRegisterPublisher:
		return "RegisterPublisher"
	case TagRegisterSubscriber:
		return "RegisterSubscriber"
	case TagMessage:
		return "Message"
	case TagAck:
		return "Ack"
	case TagError:
		return "Error"
	default:
		return fmt.Sprintf("FrameTag(%d)", uint8(t))
	}
}

// DefaultMaxFrameSize is the default cap on N (length field), 16 MiB.
const DefaultMaxFrameSize = 16 << 20

// Sentinel errors for the frame codec's failure modes. ErrUnknownTag wraps
// ErrMalformed, so an unknown tag also matches errors.Is(err, ErrMalformed).
var (
	ErrMalformed     = errors.New("wire: malformed frame")
	ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")
	ErrUnknownTag    = fmt.Errorf("%w: unknown frame tag", ErrMalformed)
)

// Frame is a single decoded wire frame. Only the fields relevant to Tag are
// populated; others are zero value.
type Frame struct {
	Tag FrameTag

	// RegisterPublisher / RegisterSubscriber
	Topic        string
	KeepAliveMS  uint32

	// Message
	Payload []byte

	// Error
	Reason string
}

// RegisterPublisher builds a RegisterPublisher frame.
func RegisterPublisher(topic string, keepAliveMS uint32) Frame {
	return Frame{Tag: TagRegisterPublisher, Topic: topic, KeepAliveMS: keepAliveMS}
}

// RegisterSubscriber builds a RegisterSubscriber frame.
func RegisterSubscriber(topic string, keepAliveMS uint32) Frame {
	return Frame{Tag: TagRegisterSubscriber, Topic: topic, KeepAliveMS: keepAliveMS}
}

// Message builds a Message frame carrying an opaque payload.
func Message(payload []byte) Frame {
	return Frame{Tag: TagMessage, Payload: payload}
}

// Ack builds the empty handshake-ok frame.
func Ack() Frame {
	return Frame{Tag: TagAck}
}

// ErrorFrame builds an Error frame carrying a UTF-8 reason.
func ErrorFrame(reason string) Frame {
	return Frame{Tag: TagError, Reason: reason}
}

// Encode writes frame to w in wire format.
func Encode(w io.Writer, frame Frame) error {
	body, err := marshalBody(frame)
	if err != nil {
		return err
	}

	// length covers tag (1 byte) + body.
	length := uint32(len(body) + 1)

	header := make([]byte, 5)
	binary.BigEndian.PutUint32(header[0:4], length)
	header[4] = byte(frame.Tag)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("wire: write body: %w", err)
		}
	}
	return nil
}

func marshalBody(frame Frame) ([]byte, error) {
	switch frame.Tag {
	case TagRegisterPublisher, TagRegisterSubscriber:
		topic := []byte(frame.Topic)
		if len(topic) > 0xFFFF {
			return nil, fmt.Errorf("%w: topic too long", ErrMalformed)
		}
		buf := make([]byte, 2+len(topic)+4)
		binary.BigEndian.PutUint16(buf[0:2], uint16(len(topic)))
		copy(buf[2:2+len(topic)], topic)
		binary.BigEndian.PutUint32(buf[2+len(topic):], frame.KeepAliveMS)
		return buf, nil
	case TagMessage:
		return frame.Payload, nil
	case TagAck:
		return nil, nil
	case TagError:
		reason := []byte(frame.Reason)
		if len(reason) > 0xFFFF {
			return nil, fmt.Errorf("%w: reason too long", ErrMalformed)
		}
		buf := make([]byte, 2+len(reason))
		binary.BigEndian.PutUint16(buf[0:2], uint16(len(reason)))
		copy(buf[2:], reason)
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownTag, frame.Tag)
	}
}

// Decoder decodes a stream of Frames from an underlying reader, buffering as
// needed. Decoder is not safe for concurrent use; a BiStream drives exactly
// one Decoder from a single reader goroutine.
type Decoder struct {
	r           *bufio.Reader
	maxFrameSize uint32
}

// NewDecoder returns a Decoder reading frames from r, rejecting any frame
// whose length exceeds maxFrameSize (0 selects DefaultMaxFrameSize).
func NewDecoder(r io.Reader, maxFrameSize uint32) *Decoder {
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Decoder{r: bufio.NewReader(r), maxFrameSize: maxFrameSize}
}

// Decode blocks until a full frame has been read, then returns it. It
// returns io.EOF if the underlying reader is exhausted cleanly before any
// byte of a new frame is read.
func (d *Decoder) Decode() (Frame, error) {
	var header [5]byte
	if _, err := io.ReadFull(d.r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%w: truncated header", ErrMalformed)
		}
		return Frame{}, err
	}

	length := binary.BigEndian.Uint32(header[0:4])
	if length < 1 {
		return Frame{}, fmt.Errorf("%w: length %d < 1", ErrMalformed, length)
	}
	if length > d.maxFrameSize {
		return Frame{}, fmt.Errorf("%w: length %d exceeds max %d", ErrFrameTooLarge, length, d.maxFrameSize)
	}

	tag := FrameTag(header[4])
	bodyLen := int(length - 1)
	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(d.r, body); err != nil {
			return Frame{}, fmt.Errorf("%w: truncated body: %v", ErrMalformed, err)
		}
	}

	return unmarshalBody(tag, body)
}

func unmarshalBody(tag FrameTag, body []byte) (Frame, error) {
	switch tag {
	case TagRegisterPublisher, TagRegisterSubscriber:
		if len(body) < 2 {
			return Frame{}, fmt.Errorf("%w: short RegisterPublisher/Subscriber body", ErrMalformed)
		}
		topicLen := int(binary.BigEndian.Uint16(body[0:2]))
		if len(body) < 2+topicLen+4 {
			return Frame{}, fmt.Errorf("%w: short topic/keepalive body", ErrMalformed)
		}
		topic := string(body[2 : 2+topicLen])
		keepAlive := binary.BigEndian.Uint32(body[2+topicLen : 2+topicLen+4])
		return Frame{Tag: tag, Topic: topic, KeepAliveMS: keepAlive}, nil
	case TagMessage:
		return Frame{Tag: tag, Payload: body}, nil
	case TagAck:
		return Frame{Tag: tag}, nil
	case TagError:
		if len(body) < 2 {
			return Frame{}, fmt.Errorf("%w: short Error body", ErrMalformed)
		}
		reasonLen := int(binary.BigEndian.Uint16(body[0:2]))
		if len(body) < 2+reasonLen {
			return Frame{}, fmt.Errorf("%w: short Error reason", ErrMalformed)
		}
		return Frame{Tag: tag, Reason: string(body[2 : 2+reasonLen])}, nil
	default:
		return Frame{}, fmt.Errorf("%w: tag %d", ErrUnknownTag, tag)
	}
}
