package kfmt

// Level is the severity attached to the lines written through a
// PrefixWriter.
type Level uint8

const (
	// LevelNone writes lines without a severity tag. It is never filtered.
	LevelNone Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var (
	// levelTags are right-aligned to a common width so that the module
	// prefixes that follow them line up.
	levelTags = [...][]byte{
		LevelNone:  nil,
		LevelError: []byte("ERROR "),
		LevelWarn:  []byte(" WARN "),
		LevelInfo:  []byte(" INFO "),
		LevelDebug: []byte("DEBUG "),
		LevelTrace: []byte("TRACE "),
	}

	// maxLevel is the most verbose level that gets written out.
	maxLevel = LevelInfo
)

// SetMaxLevel sets the most verbose level that PrefixWriters emit. Lines
// tagged with a more verbose level are discarded.
func SetMaxLevel(level Level) {
	maxLevel = level
}

func (l Level) enabled() bool {
	return l <= maxLevel
}

func (l Level) tag() []byte {
	if int(l) >= len(levelTags) {
		return nil
	}
	return levelTags[l]
}
