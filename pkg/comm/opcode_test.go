package comm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplyTable(t *testing.T) {
	for req, resp := range replies {
		require.Equal(t, CategoryCommand, req.Category(), "%s", req)
		require.Equal(t, CategoryResponse, resp.Category(), "%s", resp)
		// the accessory answers with the next opcode.
		require.Equal(t, req+1, resp)
		back, ok := RequestOf(resp)
		require.True(t, ok)
		require.Equal(t, req, back)
	}
	_, ok := ReplyOf(OpKeypress)
	require.False(t, ok)
	_, ok = RequestOf(OpSetParam)
	require.False(t, ok)
}

func TestOpcodeCategory(t *testing.T) {
	testCases := []struct {
		op  Opcode
		cat Category
		str string
	}{
		{OpMouse, CategoryMouse, "mouse"},
		{OpKeypress, CategoryKeypress, "keypress"},
		{OpMMKey, CategoryMMKey, "mmkey"},
		{OpTouch, CategoryTouch, "touch"},
		{OpKbDisableStatus, CategoryKbDisable, "kb-disable-status"},
		{OpSyncUplink, CategorySync, "sync-uplink"},
		{OpSetParam, CategoryCommand, "set-param"},
		{OpEndFwUpdateResp, CategoryResponse, "end-fw-update-resp"},
		{Opcode(0x42), CategoryUnknown, "opcode(0x42)"},
	}
	for _, tc := range testCases {
		t.Run(tc.str, func(t *testing.T) {
			require.Equal(t, tc.cat, tc.op.Category())
			require.Equal(t, tc.str, tc.op.String())
		})
	}
	require.Equal(t, "kb-disable", CategoryKbDisable.String())
	require.Equal(t, "category(42)", Category(42).String())
}

func TestPacket(t *testing.T) {
	pkt := &Packet{Seed: 1, Data: []byte{0x16, 0x03, 0x03}}
	require.Equal(t, OpSyncUplink, pkt.Opcode())
	require.Equal(t, []byte{0x03, 0x03}, pkt.Args())
	require.Equal(t, "sync-uplink[03 03]", pkt.String())

	pkt = &Packet{Data: []byte{0x16}}
	require.Nil(t, pkt.Args())
	require.Equal(t, Opcode(0), (&Packet{}).Opcode())
}

func TestDispatcher(t *testing.T) {
	d := NewDispatcher()
	var got []string
	record := func(name string) PacketHandler {
		return HandlePacketFunc(func(ctx context.Context, pkt *Packet) {
			got = append(got, name+":"+pkt.Opcode().String())
		})
	}
	d.Handle(OpKeypress, record("key"))
	d.HandleCategory(CategoryResponse, record("resp"))
	d.HandleCategory(CategoryKeypress, record("never"))

	ctx := context.Background()
	for _, op := range []Opcode{OpKeypress, OpSetParamResp, OpI2CReadResp, OpTouch} {
		d.HandlePacket(ctx, &Packet{Data: []byte{byte(op)}})
	}
	require.Equal(t, []string{"key:keypress", "resp:set-param-resp", "resp:i2c-read-resp"}, got)
	require.Equal(t, uint64(1), d.Unhandled())

	d.Default = record("default")
	d.Handle(OpKeypress, nil)
	d.HandlePacket(ctx, &Packet{Data: []byte{byte(OpTouch)}})
	d.HandlePacket(ctx, &Packet{Data: []byte{byte(OpKeypress)}})
	require.Equal(t, []string{"default:touch", "never:keypress"}, got[3:])
	require.Equal(t, uint64(1), d.Unhandled())
}
