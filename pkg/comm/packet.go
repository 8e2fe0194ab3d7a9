package comm

import "fmt"

// Packet is a descrambled application packet.
type Packet struct {
	Seed byte   // scramble seed carried in the frame header
	Data []byte // opcode followed by arguments
}

// Opcode returns the leading byte, or 0 for an empty packet.
func (p *Packet) Opcode() Opcode {
	if len(p.Data) == 0 {
		return 0
	}
	return Opcode(p.Data[0])
}

// Args returns the bytes after the opcode.
func (p *Packet) Args() []byte {
	if len(p.Data) < 2 {
		return nil
	}
	return p.Data[1:]
}

// String implements fmt.Stringer.
func (p *Packet) String() string {
	return fmt.Sprintf("%s[% x]", p.Opcode(), p.Args())
}
