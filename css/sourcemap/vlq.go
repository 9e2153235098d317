package sourcemap

import (
	"fmt"
	"strings"
)

const vlqAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var vlqIndex = func() (idx [256]int8) {
	for i := range idx {
		idx[i] = -1
	}
	for i := range len(vlqAlphabet) {
		idx[vlqAlphabet[i]] = int8(i)
	}
	return idx
}()

func writeVLQ(sb *strings.Builder, v int64) {
	var u uint64
	if v < 0 {
		u = uint64(-v)<<1 | 1
	} else {
		u = uint64(v) << 1
	}
	for {
		digit := u & 31
		u >>= 5
		if u > 0 {
			digit |= 32
		}
		sb.WriteByte(vlqAlphabet[digit])
		if u == 0 {
			return
		}
	}
}

// readVLQ decodes one value from the start of s and returns the rest.
func readVLQ(s string) (int64, string, error) {
	var (
		u     uint64
		shift uint
	)
	for i := 0; i < len(s); i++ {
		d := vlqIndex[s[i]]
		if d < 0 {
			return 0, "", fmt.Errorf("%w: bad vlq character %q", ErrInvalidSourceMap, s[i])
		}
		if shift > 60 {
			return 0, "", fmt.Errorf("%w: vlq value overflow", ErrInvalidSourceMap)
		}
		u |= uint64(d&31) << shift
		shift += 5
		if d&32 == 0 {
			v := int64(u >> 1)
			if u&1 == 1 {
				v = -v
			}
			return v, s[i+1:], nil
		}
	}
	return 0, "", fmt.Errorf("%w: truncated vlq value", ErrInvalidSourceMap)
}

// encodeMappings expects mappings sorted by generated position.
func encodeMappings(mappings []Mapping) string {
	var sb strings.Builder
	var line uint32
	var prevCol, prevSource, prevLine, prevOrigCol, prevName int64
	first := true
	for _, m := range mappings {
		for line < m.GeneratedLine {
			sb.WriteByte(';')
			line++
			prevCol = 0
			first = true
		}
		if !first {
			sb.WriteByte(',')
		}
		first = false

		writeVLQ(&sb, int64(m.GeneratedColumn)-prevCol)
		prevCol = int64(m.GeneratedColumn)
		if o := m.Original; o != nil {
			writeVLQ(&sb, int64(o.Source)-prevSource)
			writeVLQ(&sb, int64(o.Line)-prevLine)
			writeVLQ(&sb, int64(o.Column)-prevOrigCol)
			prevSource, prevLine, prevOrigCol = int64(o.Source), int64(o.Line), int64(o.Column)
			if o.Name != nil {
				writeVLQ(&sb, int64(*o.Name)-prevName)
				prevName = int64(*o.Name)
			}
		}
	}
	return sb.String()
}

func decodeMappings(s string) ([]Mapping, error) {
	var mappings []Mapping
	var prevSource, prevLine, prevOrigCol, prevName int64
	for line, group := range strings.Split(s, ";") {
		var prevCol int64
		for segment := range strings.SplitSeq(group, ",") {
			if segment == "" {
				continue
			}
			var fields []int64
			for rest := segment; rest != ""; {
				v, r, err := readVLQ(rest)
				if err != nil {
					return nil, err
				}
				fields = append(fields, v)
				rest = r
			}
			if len(fields) != 1 && len(fields) != 4 && len(fields) != 5 {
				return nil, fmt.Errorf("%w: segment %q has %d fields", ErrInvalidSourceMap, segment, len(fields))
			}
			prevCol += fields[0]
			m := Mapping{GeneratedLine: uint32(line), GeneratedColumn: uint32(prevCol)}
			if len(fields) >= 4 {
				prevSource += fields[1]
				prevLine += fields[2]
				prevOrigCol += fields[3]
				m.Original = &OriginalLocation{
					Source: uint32(prevSource),
					Line:   uint32(prevLine),
					Column: uint32(prevOrigCol),
				}
				if len(fields) == 5 {
					prevName += fields[4]
					name := uint32(prevName)
					m.Original.Name = &name
				}
			}
			mappings = append(mappings, m)
		}
	}
	return mappings, nil
}
