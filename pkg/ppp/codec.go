package ppp

// Frame markers and escapes.
const (
	Flag1    byte = 0x7e
	Flag2    byte = 0xff
	Esc      byte = 0x7d
	Flag1Esc byte = 0x5e
	EscEsc   byte = 0x5d
)

const (
	// MaxPayloadLen is the max length of unescaped payload.
	MaxPayloadLen = 256
	// MinFrameLen is the minimum encoding overhead. Decode rejects frames
	// not longer than this.
	MinFrameLen = 4
)

// EncodeBufLen returns the worst-case frame length for a max sized payload
// with headerLen bytes of header: three marker bytes, everything escaped
// including the checksum, and the terminator.
func EncodeBufLen(headerLen int) int {
	return 2*(MaxPayloadLen+headerLen+1) + MinFrameLen
}

// ChecksumMode selects what goes into the frame checksum.
type ChecksumMode int

const (
	// ChecksumPlain sums the unescaped header and payload bytes.
	ChecksumPlain ChecksumMode = iota
	// ChecksumWire sums the bytes as they appear on the wire, i.e. an escaped
	// byte contributes both bytes of its escape pair. Early accessory
	// firmware computes the checksum this way.
	ChecksumWire
)

// String implements fmt.Stringer.
func (m ChecksumMode) String() string {
	if m == ChecksumWire {
		return "wire"
	}
	return "plain"
}

// Codec encodes and decodes frames.
type Codec struct {
	Checksum ChecksumMode
}

// DefaultCodec uses ChecksumPlain.
var DefaultCodec = Codec{}

// Encode encodes with DefaultCodec.
func Encode(payload, header []byte) ([]byte, error) {
	return DefaultCodec.Encode(payload, header)
}

// Decode decodes with DefaultCodec.
func Decode(frame []byte) ([]byte, error) {
	return DefaultCodec.Decode(frame)
}

// Pack packs with DefaultCodec.
func Pack(dst, payload []byte, seed byte) ([]byte, error) {
	return DefaultCodec.Pack(dst, payload, seed)
}

// Unpack unpacks with DefaultCodec.
func Unpack(frame []byte) (seed byte, data []byte, err error) {
	return DefaultCodec.Unpack(frame)
}

func (c Codec) weight(b byte) byte {
	if c.Checksum == ChecksumWire {
		switch b {
		case Flag1:
			return Esc + Flag1Esc
		case Esc:
			return Esc + EscEsc
		}
	}
	return b
}

// Sum computes the checksum over the unescaped parts in order.
func (c Codec) Sum(parts ...[]byte) (sum byte) {
	for _, part := range parts {
		for _, b := range part {
			sum += c.weight(b)
		}
	}
	return
}

func appendEscaped(dst []byte, src ...byte) []byte {
	for _, b := range src {
		switch b {
		case Flag1:
			dst = append(dst, Esc, Flag1Esc)
		case Esc:
			dst = append(dst, Esc, EscEsc)
		default:
			dst = append(dst, b)
		}
	}
	return dst
}

// Encode encodes header and payload into a new frame.
func (c Codec) Encode(payload, header []byte) ([]byte, error) {
	return c.AppendEncode(make([]byte, 0, EncodeBufLen(len(header))), payload, header)
}

// AppendEncode appends the frame of header and payload to dst.
func (c Codec) AppendEncode(dst, payload, header []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return dst, ErrPayloadTooLarge
	}
	dst = append(dst, Flag1, Flag1, Flag2)
	dst = appendEscaped(dst, header...)
	dst = appendEscaped(dst, payload...)
	dst = appendEscaped(dst, c.Sum(header, payload))
	return append(dst, Flag1), nil
}

// Decode decodes a frame into a new slice holding header and payload.
func (c Codec) Decode(frame []byte) ([]byte, error) {
	return c.AppendDecode(nil, frame)
}

// AppendDecode appends the unescaped header and payload of frame to dst.
// On error, dst is returned unchanged.
//
// The frame starts right after the first FLAG1 FLAG2 found in frame and ends
// at the first FLAG1 not part of an escape pair. The last unescaped byte
// before the terminator is the checksum.
func (c Codec) AppendDecode(dst, frame []byte) ([]byte, error) {
	n := len(frame)
	if n <= MinFrameLen {
		return dst, ErrFrameTooShort
	}
	start := -1
	for i := 0; i < n-MinFrameLen; i++ {
		if frame[i] == Flag1 && frame[i+1] == Flag2 {
			start = i + 2
			break
		}
	}
	if start < 0 {
		return dst, ErrMarkerNotFound
	}

	base := len(dst)
	var sum, last, lastWeight byte
	for i := start; i < n; i++ {
		b := frame[i]
		switch b {
		case Flag1:
			if len(dst)-base < 2 {
				return dst[:base], ErrEmptyFrame
			}
			if sum -= lastWeight; sum != last {
				return dst[:base], &ChecksumError{Want: last, Got: sum}
			}
			return dst[:len(dst)-1], nil
		case Esc:
			if i+1 >= n {
				return dst[:base], ErrInvalidEscape
			}
			i++
			switch frame[i] {
			case Flag1Esc:
				b = Flag1
			case EscEsc:
				b = Esc
			default:
				return dst[:base], ErrInvalidEscape
			}
		}
		dst = append(dst, b)
		last, lastWeight = b, c.weight(b)
		sum += lastWeight
	}
	return dst[:base], ErrTerminatorNotFound
}

// Pack scrambles payload with seed and appends the frame carrying the seed
// as header to dst.
func (c Codec) Pack(dst, payload []byte, seed byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return dst, ErrPayloadTooLarge
	}
	var buf [MaxPayloadLen]byte
	scrambled := buf[:len(payload)]
	ScrambleWithSeed(scrambled, payload, seed)
	return c.AppendEncode(dst, scrambled, []byte{seed})
}

// Unpack decodes frame, splits off the seed header and descrambles the rest
// in place.
func (c Codec) Unpack(frame []byte) (seed byte, data []byte, err error) {
	decoded, err := c.Decode(frame)
	if err != nil {
		return 0, nil, err
	}
	seed, data = decoded[0], decoded[1:]
	Descramble(data, data, seed)
	return seed, data, nil
}
