package actuator

const (
	CmdKeyState = 0x20
	SOF0        = 0xAA
	SOF1        = 0x55
)

// Frame is a full-state snapshot of every key slot, sent to the keyboard
// bridge in one transfer. A lost frame is corrected by the next one.
type Frame struct {
	Down uint16 // bit N set = slot N held
	Seq  byte
}

// Encode builds the on-wire representation:
//
//	[SOF0][SOF1][LEN][CMD][down lo][down hi][Seq][CKS]
func (f *Frame) Encode() []byte {
	payload := []byte{byte(f.Down), byte(f.Down >> 8), f.Seq}

	length := byte(len(payload) + 1) // +1 for CMD byte
	cks := length ^ CmdKeyState
	for _, b := range payload {
		cks ^= b
	}

	out := []byte{SOF0, SOF1, length, CmdKeyState}
	out = append(out, payload...)
	out = append(out, cks)
	return out
}
