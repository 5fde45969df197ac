package lod

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownLevel  = errors.New("unknown detail level")
	ErrInvalidPolicy = errors.New("invalid lod policy")
)

// DetailLevel orders views from coarse to fine
type DetailLevel int

const (
	LevelOverview DetailLevel = iota
	LevelCategory
	LevelDetail
	LevelFull

	numLevels
)

var levelNames = [...]string{
	LevelOverview: "overview",
	LevelCategory: "category",
	LevelDetail:   "detail",
	LevelFull:     "full",
}

var _ [len(levelNames) - int(numLevels)]struct{}
var _ [int(numLevels) - len(levelNames)]struct{}

// Levels lists every level from coarse to fine
func Levels() []DetailLevel {
	return []DetailLevel{LevelOverview, LevelCategory, LevelDetail, LevelFull}
}

// Valid reports whether l is a defined level
func (l DetailLevel) Valid() bool {
	return l >= 0 && l < numLevels
}

func (l DetailLevel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel accepts a level name, case insensitive
func ParseLevel(s string) (DetailLevel, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return DetailLevel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// MarshalText implements encoding.TextMarshaler
func (l DetailLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLevel, int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *DetailLevel) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
