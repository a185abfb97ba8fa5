// Package protocol implements the serial text-line protocol boundary and
// the integer codec shared with the persistent record format
package protocol

// Version represents the dispenser firmware version
const Version = "0.3.0"

// Protocol constants
const (
	MaxLineLength = 64 // Longest command line accepted; extra bytes are dropped

	LineEnd         = "\r\n"
	MarkerOK        = "[OK]"
	MarkerParseFail = "[Parse fail]"
)

// Control bytes recognised by the line assembler
const (
	ByteBackspace = 0x08
	ByteDelete    = 0x7F
	ByteCR        = 0x0D
	ByteLF        = 0x0A
)

// eraseSequence moves the cursor back one column and clears to end of line
var eraseSequence = []byte("\x08\x1b[K")
