package comm

import "fmt"

// Opcode is the leading byte of a packet.
type Opcode byte

// Events from the accessory.
const (
	OpMouse           Opcode = 0x10
	OpKeypress        Opcode = 0x11
	OpMMKey           Opcode = 0x12
	OpTouch           Opcode = 0x13
	OpKbDisableStatus Opcode = 0x15
	OpSyncUplink      Opcode = 0x16
)

// Commands and their responses.
const (
	OpSetParam            Opcode = 0x6a
	OpSetParamResp        Opcode = 0x6b
	OpGetParam            Opcode = 0x6c
	OpGetParamResp        Opcode = 0x6d
	OpStartFwUpdate       Opcode = 0x70
	OpStartFwUpdateResp   Opcode = 0x71
	OpTxFwData            Opcode = 0x72
	OpTxFwDataResp        Opcode = 0x73
	OpEndFwUpdate         Opcode = 0x74
	OpEndFwUpdateResp     Opcode = 0x75
	OpSoftReset           Opcode = 0x76
	OpSoftResetResp       Opcode = 0x77
	OpProduction          Opcode = 0x7c
	OpProductionResp      Opcode = 0x7d
	OpI2CWrite            Opcode = 0x80
	OpI2CWriteResp        Opcode = 0x81
	OpI2CRead             Opcode = 0x82
	OpI2CReadResp         Opcode = 0x83
	OpTouchpadVersion     Opcode = 0x84
	OpTouchpadVersionResp Opcode = 0x85
)

// Category groups opcodes by how they are handled.
type Category int

// Categories.
const (
	CategoryUnknown Category = iota
	CategoryMouse
	CategoryKeypress
	CategoryMMKey
	CategoryTouch
	CategoryKbDisable
	CategorySync
	CategoryCommand
	CategoryResponse
)

var categoryNames = [...]string{
	CategoryUnknown:   "unknown",
	CategoryMouse:     "mouse",
	CategoryKeypress:  "keypress",
	CategoryMMKey:     "mmkey",
	CategoryTouch:     "touch",
	CategoryKbDisable: "kb-disable",
	CategorySync:      "sync",
	CategoryCommand:   "command",
	CategoryResponse:  "response",
}

// String implements fmt.Stringer.
func (c Category) String() string {
	if c >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", int(c))
}

type opcodeInfo struct {
	name     string
	category Category
}

var opcodes = map[Opcode]opcodeInfo{
	OpMouse:           {"mouse", CategoryMouse},
	OpKeypress:        {"keypress", CategoryKeypress},
	OpMMKey:           {"mmkey", CategoryMMKey},
	OpTouch:           {"touch", CategoryTouch},
	OpKbDisableStatus: {"kb-disable-status", CategoryKbDisable},
	OpSyncUplink:      {"sync-uplink", CategorySync},

	OpSetParam:            {"set-param", CategoryCommand},
	OpSetParamResp:        {"set-param-resp", CategoryResponse},
	OpGetParam:            {"get-param", CategoryCommand},
	OpGetParamResp:        {"get-param-resp", CategoryResponse},
	OpStartFwUpdate:       {"start-fw-update", CategoryCommand},
	OpStartFwUpdateResp:   {"start-fw-update-resp", CategoryResponse},
	OpTxFwData:            {"tx-fw-data", CategoryCommand},
	OpTxFwDataResp:        {"tx-fw-data-resp", CategoryResponse},
	OpEndFwUpdate:         {"end-fw-update", CategoryCommand},
	OpEndFwUpdateResp:     {"end-fw-update-resp", CategoryResponse},
	OpSoftReset:           {"soft-reset", CategoryCommand},
	OpSoftResetResp:       {"soft-reset-resp", CategoryResponse},
	OpProduction:          {"production", CategoryCommand},
	OpProductionResp:      {"production-resp", CategoryResponse},
	OpI2CWrite:            {"i2c-write", CategoryCommand},
	OpI2CWriteResp:        {"i2c-write-resp", CategoryResponse},
	OpI2CRead:             {"i2c-read", CategoryCommand},
	OpI2CReadResp:         {"i2c-read-resp", CategoryResponse},
	OpTouchpadVersion:     {"tp-version", CategoryCommand},
	OpTouchpadVersionResp: {"tp-version-resp", CategoryResponse},
}

// replies maps a command to its response. New command pairs go here.
var replies = map[Opcode]Opcode{
	OpSetParam:        OpSetParamResp,
	OpGetParam:        OpGetParamResp,
	OpStartFwUpdate:   OpStartFwUpdateResp,
	OpTxFwData:        OpTxFwDataResp,
	OpEndFwUpdate:     OpEndFwUpdateResp,
	OpSoftReset:       OpSoftResetResp,
	OpProduction:      OpProductionResp,
	OpI2CWrite:        OpI2CWriteResp,
	OpI2CRead:         OpI2CReadResp,
	OpTouchpadVersion: OpTouchpadVersionResp,
}

var requests = make(map[Opcode]Opcode, len(replies))

func init() {
	for req, resp := range replies {
		requests[resp] = req
	}
}

// ReplyOf returns the response opcode of a command.
func ReplyOf(op Opcode) (Opcode, bool) {
	resp, ok := replies[op]
	return resp, ok
}

// RequestOf returns the command opcode of a response.
func RequestOf(op Opcode) (Opcode, bool) {
	req, ok := requests[op]
	return req, ok
}

// Category classifies the opcode.
func (op Opcode) Category() Category {
	return opcodes[op].category
}

// String implements fmt.Stringer.
func (op Opcode) String() string {
	if info, ok := opcodes[op]; ok {
		return info.name
	}
	return fmt.Sprintf("opcode(0x%02x)", byte(op))
}
