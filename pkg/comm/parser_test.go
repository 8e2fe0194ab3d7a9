package comm

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/owb.go/pkg/ppp"
)

var goldenFrame = []byte{0x7e, 0x7e, 0xff, 0x10, 0xa9, 0xa8, 0xcc, 0x50, 0x63, 0xe0, 0x7e}

var goldenPacket = &Packet{Seed: 0x10, Data: []byte{0x6a, 0x03, 0x36, 0x01, 0x01}}

func mustPack(t *testing.T, payload []byte, seed byte) []byte {
	frame, err := ppp.Pack(nil, payload, seed)
	require.NoError(t, err)
	return frame
}

type parserTestSequence struct {
	in     []byte
	packet *Packet
	err    error
	state  ParseState
	n      int
}

type parserTestSequenceBuilder struct {
	seq []parserTestSequence
}

func parserTestSequences() *parserTestSequenceBuilder {
	return &parserTestSequenceBuilder{}
}

func (b *parserTestSequenceBuilder) on(in ...byte) *parserTestSequenceBuilder {
	b.seq = append(b.seq, parserTestSequence{in: in, n: -1})
	return b
}

func (b *parserTestSequenceBuilder) last() *parserTestSequence {
	return &b.seq[len(b.seq)-1]
}

func (b *parserTestSequenceBuilder) state(state ParseState, n int) *parserTestSequenceBuilder {
	b.last().state, b.last().n = state, n
	return b
}

func (b *parserTestSequenceBuilder) packet(seed byte, data ...byte) *parserTestSequenceBuilder {
	b.last().packet = &Packet{Seed: seed, Data: data}
	return b.state(StateWaitFlag1, 0)
}

func (b *parserTestSequenceBuilder) dropped(err error) *parserTestSequenceBuilder {
	b.last().err = err
	return b
}

func (b *parserTestSequenceBuilder) resync(err error) *parserTestSequenceBuilder {
	return b.dropped(err).state(StateWaitFlag2, 1)
}

func (b *parserTestSequenceBuilder) build() []parserTestSequence {
	return b.seq
}

func repeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestParser(t *testing.T) {
	body := goldenFrame[2:]
	// scrambles into bytes which need escaping.
	escaped := make([]byte, 3)
	ppp.Descramble(escaped, []byte{0x7e, 0x7d, 0x11}, 0x22)
	escapedFrame := mustPack(t, escaped, 0x22)
	require.Contains(t, string(escapedFrame[4:]), string([]byte{ppp.Esc, ppp.Flag1Esc, ppp.Esc, ppp.EscEsc}))
	testCases := []struct {
		name string
		seq  []parserTestSequence
	}{
		{
			name: "golden frame",
			seq: parserTestSequences().
				on(goldenFrame...).packet(0x10, 0x6a, 0x03, 0x36, 0x01, 0x01).
				build(),
		},
		{
			name: "skip leading garbage",
			seq: parserTestSequences().
				on(0x01, 0xff, 0x7d, 0x5e).state(StateWaitFlag1, 0).
				on(goldenFrame...).packet(0x10, 0x6a, 0x03, 0x36, 0x01, 0x01).
				build(),
		},
		{
			name: "flag1 padding",
			seq: parserTestSequences().
				on(0x7e, 0x7e, 0x7e, 0x7e).state(StateWaitFlag2, 1).
				on(body...).packet(0x10, 0x6a, 0x03, 0x36, 0x01, 0x01).
				build(),
		},
		{
			name: "flag1 not followed by flag2",
			seq: parserTestSequences().
				on(0x7e, 0x10).state(StateWaitFlag1, 1).
				on(goldenFrame...).packet(0x10, 0x6a, 0x03, 0x36, 0x01, 0x01).
				build(),
		},
		{
			name: "back to back frames",
			seq: parserTestSequences().
				on(goldenFrame...).packet(0x10, 0x6a, 0x03, 0x36, 0x01, 0x01).
				on(0x7e, 0x7e, 0xff, 0x01, 0x14, 0xda, 0x54, 0x43, 0x7e).packet(0x01, 0x16, 0x03, 0x03).
				build(),
		},
		{
			name: "garbage between frames",
			seq: parserTestSequences().
				on(0x01, 0xff, 0x7d, 0x5e).state(StateWaitFlag1, 0).
				on(goldenFrame...).packet(0x10, 0x6a, 0x03, 0x36, 0x01, 0x01).
				on(0x33, 0x7d, 0x00, 0xff).state(StateWaitFlag1, 0).
				on(escapedFrame...).packet(0x22, escaped...).
				build(),
		},
		{
			name: "short frame restarts",
			seq: parserTestSequences().
				on(0x7e, 0xff, 0x10).state(StateWaitTerminator, 3).
				on(0x7e).state(StateWaitFlag2, 1).
				on(body...).packet(0x10, 0x6a, 0x03, 0x36, 0x01, 0x01).
				build(),
		},
		{
			name: "checksum mismatch resyncs on terminator",
			seq: parserTestSequences().
				on(0x7e, 0x7e, 0xff, 0x10, 0xa9, 0xa8, 0xcc, 0x50, 0x63, 0xe1, 0x7e).resync(ppp.ErrChecksumMismatch).
				on(body...).packet(0x10, 0x6a, 0x03, 0x36, 0x01, 0x01).
				build(),
		},
		{
			name: "invalid escape resyncs",
			seq: parserTestSequences().
				on(0x7e, 0xff, 0x10, 0x7d, 0x01, 0x00, 0x7e).resync(ppp.ErrInvalidEscape).
				build(),
		},
		{
			name: "empty packet",
			seq: parserTestSequences().
				on(0x7e, 0x7e, 0xff, 0x10, 0x10, 0x7e).dropped(ErrEmptyPacket).state(StateWaitFlag1, 0).
				on(goldenFrame...).packet(0x10, 0x6a, 0x03, 0x36, 0x01, 0x01).
				build(),
		},
		{
			name: "overflow",
			seq: parserTestSequences().
				on(0x7e, 0xff).state(StateWaitTerminator, 2).
				on(repeat(0x55, FrameBufferSize-2)...).dropped(ErrBufferOverflow).state(StateWaitFlag1, 0).
				on(0x55, 0x7e).state(StateWaitFlag2, 1).
				on(body...).packet(0x10, 0x6a, 0x03, 0x36, 0x01, 0x01).
				build(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var parser Parser
			for n, s := range tc.seq {
				var pr ParseResult
				for i, b := range s.in {
					pr = parser.Parse(b)
					if i+1 < len(s.in) {
						require.Nilf(t, pr.Packet, "seq[%d][%d] unexpected packet", n, i)
						require.NoErrorf(t, pr.Err, "seq[%d][%d] unexpected error", n, i)
					}
				}
				require.Equalf(t, s.packet, pr.Packet, "seq[%d] packet mismatch", n)
				if s.err == nil {
					require.NoErrorf(t, pr.Err, "seq[%d] unexpected error", n)
				} else {
					require.Truef(t, errors.Is(pr.Err, s.err), "seq[%d] expect %v, got %v", n, s.err, pr.Err)
				}
				require.Equalf(t, s.state, parser.State(), "seq[%d] state mismatch", n)
				if s.n >= 0 {
					require.Equalf(t, s.n, parser.Buffered(), "seq[%d] buffered mismatch", n)
				}
			}
		})
	}
}

func TestParserRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for _, mode := range []ppp.ChecksumMode{ppp.ChecksumPlain, ppp.ChecksumWire} {
		t.Run(mode.String(), func(t *testing.T) {
			codec := ppp.Codec{Checksum: mode}
			parser := Parser{Codec: codec}
			for size := 1; size <= ppp.MaxPayloadLen; size += 7 {
				payload := make([]byte, size)
				rnd.Read(payload)
				seed := byte(rnd.Intn(128))
				frame, err := codec.Pack(nil, payload, seed)
				require.NoError(t, err)
				var pkt *Packet
				for _, b := range frame {
					pr := parser.Parse(b)
					if pr.Err != nil {
						// frames escaping to more than the buffer are dropped.
						require.True(t, errors.Is(pr.Err, ErrBufferOverflow))
						require.True(t, len(frame) > FrameBufferSize)
					}
					if pr.Packet != nil {
						pkt = pr.Packet
					}
				}
				if len(frame) > FrameBufferSize {
					continue
				}
				require.NotNil(t, pkt, "size %d", size)
				require.Equal(t, seed, pkt.Seed)
				require.Equal(t, payload, pkt.Data)
			}
		})
	}
}

func TestParserArbitraryInput(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	var parser Parser
	// bias towards the special bytes.
	alphabet := []byte{ppp.Flag1, ppp.Flag2, ppp.Esc, ppp.Flag1Esc, ppp.EscEsc, 0x00, 0x10}
	for i := 0; i < 100000; i++ {
		var b byte
		if rnd.Intn(2) == 0 {
			b = alphabet[rnd.Intn(len(alphabet))]
		} else {
			b = byte(rnd.Intn(256))
		}
		pr := parser.Parse(b)
		require.False(t, pr.Packet != nil && pr.Err != nil)
		require.True(t, parser.Buffered() < FrameBufferSize)
	}
	parser.Reset()
	for _, b := range goldenFrame {
		if pr := parser.Parse(b); pr.Packet != nil {
			require.Equal(t, goldenPacket, pr.Packet)
		}
	}
}

func TestParseStateString(t *testing.T) {
	require.Equal(t, "wait-flag1", StateWaitFlag1.String())
	require.Equal(t, "wait-flag2", StateWaitFlag2.String())
	require.Equal(t, "wait-terminator", StateWaitTerminator.String())
	require.Equal(t, "invalid", ParseState(9).String())
}
