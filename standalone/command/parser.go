package command

import (
	"strconv"
	"strings"
)

// keyword binds a command phrase to the parser for its arguments.
// Order matters only for documentation: no phrase is a prefix of another.
type keyword struct {
	phrase string
	parse  func(s *scanner) (Cmd, error)
}

var keywords = []keyword{
	{"goto", func(s *scanner) (Cmd, error) {
		set, err := s.axisSet(false)
		return Goto{Target: set}, err
	}},
	{"move", func(s *scanner) (Cmd, error) {
		set, err := s.axisSet(false)
		return Move{Delta: set}, err
	}},
	{"speed max", func(s *scanner) (Cmd, error) {
		set, err := s.magnitudeSet()
		return SpeedMax{Values: set}, err
	}},
	{"speed min", func(s *scanner) (Cmd, error) {
		set, err := s.magnitudeSet()
		return SpeedMin{Values: set}, err
	}},
	{"speed acc", func(s *scanner) (Cmd, error) {
		set, err := s.magnitudeSet()
		return SpeedAccel{Values: set}, err
	}},
	{"step_per_mm", func(s *scanner) (Cmd, error) {
		set, err := s.magnitudeSet()
		return StepPerMM{Values: set}, err
	}},
	{"add pos", parseAddPos},
	{"del pos", func(s *scanner) (Cmd, error) {
		id, err := s.requiredUnsigned()
		return DelPos{Index: id}, err
	}},
	{"water duration", parseWaterDuration},
	{"repeat duration", func(s *scanner) (Cmd, error) {
		ms, err := s.requiredUnsigned()
		return RepeatDuration{Millis: ms}, err
	}},
	{"list pos", bare(ListPos{})},
	{"pump on", bare(PumpOn{})},
	{"pump off", bare(PumpOff{})},
	{"start", bare(Start{})},
	{"stop", bare(Stop{})},
	{"home", bare(Home{})},
	{"help", bare(Help{})},
	{"status", bare(Status{})},
}

// Parse parses a single command line. Keywords and axis letters are
// case-insensitive and the whole line must be consumed.
func Parse(line string) (Cmd, error) {
	s := &scanner{line: line}
	s.skipSpace()

	for _, kw := range keywords {
		if !s.acceptFold(kw.phrase) {
			continue
		}
		cmd, err := kw.parse(s)
		if err != nil {
			return nil, err
		}
		if !s.atEnd() {
			return nil, newParseError(ErrKindTrailingInput, s.line[s.i:], s.i)
		}
		return cmd, nil
	}

	return nil, newParseError(ErrKindUnknownCommand, strings.TrimSpace(line), s.i)
}

func bare(cmd Cmd) func(s *scanner) (Cmd, error) {
	return func(s *scanner) (Cmd, error) { return cmd, nil }
}

// parseAddPos parses "add pos" <complete axis set> [duration]
func parseAddPos(s *scanner) (Cmd, error) {
	set, err := s.axisSet(false)
	if err != nil {
		return nil, err
	}
	if !set.Complete() {
		return nil, newParseError(ErrKindIncompleteAxes, "", s.i)
	}

	dur, ok, err := s.unsigned()
	if err != nil {
		return nil, err
	}
	return AddPos{Pos: set, Duration: dur, HasDuration: ok}, nil
}

// parseWaterDuration parses "water duration" [index] <duration>
func parseWaterDuration(s *scanner) (Cmd, error) {
	first, err := s.requiredUnsigned()
	if err != nil {
		return nil, err
	}

	second, ok, err := s.unsigned()
	if err != nil {
		return nil, err
	}
	if !ok {
		return WaterDuration{Duration: first}, nil
	}
	return WaterDuration{Index: first, HasIndex: true, Duration: second}, nil
}

// scanner walks one line left to right
type scanner struct {
	line string
	i    int
}

// skipSpace advances past spaces and tabs
func (s *scanner) skipSpace() {
	for s.i < len(s.line) && (s.line[s.i] == ' ' || s.line[s.i] == '\t') {
		s.i++
	}
}

// atEnd reports whether only whitespace remains
func (s *scanner) atEnd() bool {
	s.skipSpace()
	return s.i >= len(s.line)
}

// acceptFold consumes phrase if the line continues with it, ignoring case
func (s *scanner) acceptFold(phrase string) bool {
	end := s.i + len(phrase)
	if end > len(s.line) || !strings.EqualFold(s.line[s.i:end], phrase) {
		return false
	}
	s.i = end
	return true
}

// axis consumes an axis letter
func (s *scanner) axis() (Axis, bool) {
	s.skipSpace()
	if s.i >= len(s.line) {
		return 0, false
	}
	var axis Axis
	switch toLower(s.line[s.i]) {
	case 'x':
		axis = AxisX
	case 'y':
		axis = AxisY
	case 'z':
		axis = AxisZ
	default:
		return 0, false
	}
	s.i++
	return axis, true
}

// number consumes an optionally signed run of digits. text is empty when
// nothing numeric starts at the cursor; a lone sign is an error.
func (s *scanner) number(signs string) (text string, pos int, err error) {
	s.skipSpace()
	start := s.i
	j := s.i
	if j < len(s.line) && strings.IndexByte(signs, s.line[j]) >= 0 {
		j++
	}
	digits := j
	for j < len(s.line) && isDigit(s.line[j]) {
		j++
	}
	if j == digits {
		if digits > start {
			return "", start, newParseError(ErrKindInvalidNumber, s.line[start:j], start)
		}
		return "", start, nil
	}
	s.i = j
	return s.line[start:j], start, nil
}

// signed consumes a signed 32-bit integer; allowPlus also accepts '+'
func (s *scanner) signed(allowPlus bool) (int32, bool, error) {
	signs := "-"
	if allowPlus {
		signs = "-+"
	}
	text, pos, err := s.number(signs)
	if err != nil || text == "" {
		return 0, false, err
	}
	v, perr := strconv.ParseInt(text, 10, 32)
	if perr != nil {
		return 0, false, newParseError(ErrKindInvalidNumber, text, pos)
	}
	return int32(v), true, nil
}

// unsigned consumes an optional bare unsigned 32-bit integer
func (s *scanner) unsigned() (uint32, bool, error) {
	text, pos, err := s.number("+")
	if err != nil || text == "" {
		return 0, false, err
	}
	v, perr := strconv.ParseUint(strings.TrimPrefix(text, "+"), 10, 32)
	if perr != nil {
		return 0, false, newParseError(ErrKindInvalidNumber, text, pos)
	}
	return uint32(v), true, nil
}

// requiredUnsigned consumes a mandatory bare unsigned integer
func (s *scanner) requiredUnsigned() (uint32, error) {
	v, ok, err := s.unsigned()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, newParseError(ErrKindMissingArgument, "", s.i)
	}
	return v, nil
}

// axisSet parses either axis-tagged values in any order (at least one,
// no repeats) or three bare values taken as x, y, z
func (s *scanner) axisSet(allowPlus bool) (AxisSet, error) {
	var set AxisSet

	if v, ok, err := s.signed(allowPlus); err != nil {
		return set, err
	} else if ok {
		set = set.With(AxisX, v)
		for _, axis := range []Axis{AxisY, AxisZ} {
			v, ok, err := s.signed(allowPlus)
			if err != nil {
				return AxisSet{}, err
			}
			if !ok {
				return AxisSet{}, newParseError(ErrKindIncompleteAxes, "", s.i)
			}
			set = set.With(axis, v)
		}
		return set, nil
	}

	for {
		save := s.i
		axis, ok := s.axis()
		if !ok {
			s.i = save
			break
		}
		if _, dup := set.Get(axis); dup {
			return AxisSet{}, newParseError(ErrKindDuplicateAxis, axis.String(), save)
		}
		v, ok, err := s.signed(allowPlus)
		if err != nil {
			return AxisSet{}, err
		}
		if !ok {
			return AxisSet{}, newParseError(ErrKindInvalidNumber, s.line[save:s.i], s.i)
		}
		set = set.With(axis, v)
	}

	if set.Empty() {
		return set, newParseError(ErrKindMissingArgument, "", s.i)
	}
	return set, nil
}

// magnitudeSet parses an axis set and rejects it whole if any value is negative
func (s *scanner) magnitudeSet() (AxisMagnitudeSet, error) {
	set, err := s.axisSet(true)
	if err != nil {
		return AxisMagnitudeSet{}, err
	}
	for _, axis := range Axes {
		if v, ok := set.Get(axis); ok && v < 0 {
			return AxisMagnitudeSet{}, newParseError(ErrKindNegativeValue, axis.String(), s.i)
		}
	}
	mags, _ := Magnitudes(set)
	return mags, nil
}

// isDigit checks if a byte is a decimal digit
func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// toLower converts an ASCII letter to lowercase
func toLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
