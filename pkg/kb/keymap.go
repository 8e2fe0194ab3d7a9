package kb

// Linux input key codes used by the accessory.
const (
	KeyMute       uint16 = 113
	KeyVolumeDown uint16 = 114
	KeyVolumeUp   uint16 = 115
	KeyBack       uint16 = 158
	KeyUnknown    uint16 = 240
	KeyKbEnable   uint16 = 0x28e
	KeyKbDisable  uint16 = 0x28f
)

const unk = KeyUnknown

// HIDKeyCodes maps HID keyboard usages to Linux key codes.
// Zero means no key.
var HIDKeyCodes = [256]uint16{
	0, 0, 0, 0, 30, 48, 46, 32, 18, 33, 34, 35, 23, 36, 37, 38,
	50, 49, 24, 25, 16, 19, 31, 20, 22, 47, 17, 45, 21, 44, 2, 3,
	4, 5, 6, 7, 8, 9, 10, 11, 28, 1, 14, 15, 57, 12, 13, 26,
	27, 43, 43, 39, 40, 41, 51, 52, 53, 58, 59, 60, 61, 62, 63, 64,
	65, 66, 67, 68, 87, 88, 99, 70, 119, 110, 102, 104, 111, 107, 109, 106,
	105, 108, 103, 69, 98, 55, 74, 78, 96, 79, 80, 81, 75, 76, 77, 71,
	72, 73, 82, 83, 86, 127, 116, 117, 183, 184, 185, 186, 187, 188, 189, 190,
	191, 192, 193, 194, 134, 138, 130, 132, 128, 129, 131, 137, 133, 135, 136, 113,
	115, 114, unk, unk, unk, 121, unk, 89, 93, 124, 92, 94, 95, unk, unk, unk,
	122, 123, 90, 91, 85, unk, unk, unk, unk, unk, unk, unk, 111, unk, unk, unk,
	unk, unk, unk, unk, unk, unk, unk, unk, unk, unk, unk, unk, unk, unk, unk, unk,
	unk, unk, unk, unk, unk, unk, 179, 180, unk, unk, unk, unk, unk, unk, unk, unk,
	unk, unk, unk, unk, unk, unk, unk, unk, unk, unk, unk, unk, unk, unk, unk, unk,
	unk, unk, unk, unk, unk, unk, unk, unk, 111, unk, unk, unk, unk, unk, unk, unk,
	29, 42, 56, 125, 97, 54, 100, 126, 164, 166, 165, 163, 161, 115, 114, 113,
	150, 158, 159, 128, 136, 177, 178, 176, 142, 152, 173, 140, unk, unk, unk, unk,
}

// ModifierBase is the HID usage of the first modifier (left control).
const ModifierBase = 0xe0

type customKey struct {
	usage uint16
	code  uint16
	scan  uint32
}

// consumer usages sent in multimedia reports. Keys without a Linux code
// are reported as KeyUnknown with a vendor scan code.
var customKeys = []customKey{
	{0x0e2, KeyMute, 0},
	{0x0ea, KeyVolumeDown, 0},
	{0x0e9, KeyVolumeUp, 0},
	{0x224, KeyBack, 0},
	{0x070, KeyUnknown, 0x0c0070}, // brightness down
	{0x06f, KeyUnknown, 0x0c006f}, // brightness up
	{0x38e, KeyUnknown, 0x0c038e}, // lock screen
	{0x390, KeyUnknown, 0x0c0390}, // switch language
	{0x391, KeyUnknown, 0x0c0391}, // mic disable
	{0x392, KeyUnknown, 0x0c0392}, // touchpad mute
	{0x393, KeyUnknown, 0x0c0393}, // global search
	{0x394, KeyUnknown, 0x0c0394}, // full screen
	{0x395, KeyUnknown, 0x0c0395}, // split screen
	{0x397, KeyUnknown, 0x0c0397},
	{0x398, KeyUnknown, 0x0c0398}, // custom app 1
	{0x399, KeyUnknown, 0x0c0399}, // custom app 2
}

// ConsumerKey maps a consumer usage from a multimedia report.
func ConsumerKey(usage uint16) (code uint16, scan uint32, ok bool) {
	for _, k := range customKeys {
		if k.usage == usage {
			return k.code, k.scan, true
		}
	}
	return 0, 0, false
}
