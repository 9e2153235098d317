package transform

import (
	"testing"

	"golang.org/x/text/encoding/unicode"
)

func encodeUTF16(t *testing.T, s string, endianness unicode.Endianness) []byte {
	t.Helper()
	data, err := unicode.UTF16(endianness, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("encode utf-16: %v", err)
	}
	return data
}

func TestDecodeSource(t *testing.T) {
	const css = ".a{content:\"é\"}"

	tests := []struct {
		name     string
		data     []byte
		wantText string
		wantEnc  string
	}{
		{"plain", []byte(css), css, "utf-8"},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, css...), css, "utf-8"},
		{"utf-16be bom", encodeUTF16(t, css, unicode.BigEndian), css, "utf-16be"},
		{"utf-16le bom", encodeUTF16(t, css, unicode.LittleEndian), css, "utf-16le"},
		{"charset utf-8", []byte(`@charset "UTF-8";` + css), `@charset "UTF-8";` + css, "utf-8"},
		{"charset utf-16 means utf-8", []byte(`@charset "utf-16";.a{}`), `@charset "utf-16";.a{}`, "utf-8"},
		{"charset windows-1251", []byte("@charset \"windows-1251\";.a{content:\"\xc0\"}"), "@charset \"windows-1251\";.a{content:\"А\"}", "windows-1251"},
		{"charset not first", []byte(` @charset "windows-1251";`), ` @charset "windows-1251";`, "utf-8"},
		{"charset single quotes ignored", []byte(`@charset 'windows-1251';`), `@charset 'windows-1251';`, "utf-8"},
		{"empty", nil, "", "utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, enc, err := decodeSource(tt.data)
			if err != nil {
				t.Fatalf("decodeSource() error = %v", err)
			}
			if text != tt.wantText {
				t.Errorf("decodeSource() text = %q, want %q", text, tt.wantText)
			}
			if enc != tt.wantEnc {
				t.Errorf("decodeSource() encoding = %q, want %q", enc, tt.wantEnc)
			}
		})
	}
}

func TestDecodeSource_UnknownCharset(t *testing.T) {
	if _, _, err := decodeSource([]byte(`@charset "klingon";.a{}`)); err == nil {
		t.Fatal("expected error for unknown charset")
	}
}

func TestCharsetLabel(t *testing.T) {
	tests := []struct {
		data   string
		want   string
		wantOK bool
	}{
		{`@charset "utf-8";`, "utf-8", true},
		{`@charset "";`, "", false},
		{`@charset "utf 8";`, "", false},
		{`@charset "utf-8"`, "", false},
		{`@CHARSET "utf-8";`, "", false},
		{`.a{}`, "", false},
	}
	for _, tt := range tests {
		got, ok := charsetLabel([]byte(tt.data))
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("charsetLabel(%q) = (%q, %v), want (%q, %v)", tt.data, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestValidUTF8(t *testing.T) {
	if !validUTF8(".a{content:\"é\"}") {
		t.Error("valid text reported invalid")
	}
	if validUTF8(".a{content:\"\xff\"}") {
		t.Error("invalid text reported valid")
	}
}
