package protocol

// LineAssembler turns a raw byte stream into editable command lines.
// It mirrors what an operator sees on a terminal: accepted bytes are
// echoed, backspace erases, CR or LF submits.
type LineAssembler struct {
	buf []byte
}

// NewLineAssembler creates an assembler with MaxLineLength capacity
func NewLineAssembler() *LineAssembler {
	return &LineAssembler{buf: make([]byte, 0, MaxLineLength)}
}

// Feed consumes one byte. It returns the bytes to echo back and, when the
// byte terminates a non-empty line, that line with complete set.
func (a *LineAssembler) Feed(b byte) (echo []byte, line string, complete bool) {
	switch {
	case b == ByteBackspace || b == ByteDelete:
		if len(a.buf) == 0 {
			return nil, "", false
		}
		a.buf = a.buf[:len(a.buf)-1]
		return eraseSequence, "", false

	case b == ByteCR || b == ByteLF:
		if len(a.buf) == 0 {
			return nil, "", false
		}
		line = string(a.buf)
		a.buf = a.buf[:0]
		return []byte(LineEnd), line, true

	case IsLineByte(b):
		if len(a.buf) >= MaxLineLength {
			return nil, "", false
		}
		a.buf = append(a.buf, b)
		return []byte{b}, "", false
	}

	// Everything else is dropped silently
	return nil, "", false
}

// Pending returns the partially assembled line
func (a *LineAssembler) Pending() string {
	return string(a.buf)
}

// Reset discards any partial line
func (a *LineAssembler) Reset() {
	a.buf = a.buf[:0]
}

// IsLineByte reports whether b may appear in a command line
func IsLineByte(b byte) bool {
	return (b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		b == ' ' || b == '-' || b == '+' || b == '_'
}
