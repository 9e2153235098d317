package css

import (
	"fmt"
	"math"
	"strings"

	"github.com/mazznoer/csscolorparser"
	"github.com/tdewolff/parse/v2/css"

	"csspipe/css/ast"
	"csspipe/css/targets"
)

var lengthUnits = map[string]bool{
	"px": true, "em": true, "rem": true, "ex": true, "ch": true,
	"vw": true, "vh": true, "vmin": true, "vmax": true,
	"cm": true, "mm": true, "q": true, "in": true, "pt": true, "pc": true,
}

var colorProperties = map[string]bool{
	"color": true, "background": true, "background-color": true,
	"border": true, "border-color": true, "border-top": true, "border-right": true,
	"border-bottom": true, "border-left": true, "border-top-color": true,
	"border-right-color": true, "border-bottom-color": true, "border-left-color": true,
	"outline": true, "outline-color": true, "text-decoration": true,
	"text-decoration-color": true, "column-rule": true, "column-rule-color": true,
	"box-shadow": true, "text-shadow": true, "caret-color": true, "accent-color": true,
	"fill": true, "stroke": true, "stop-color": true, "flood-color": true,
	"lighting-color": true, "text-emphasis-color": true,
}

var colorFunctions = map[string]bool{
	"rgb(": true, "rgba(": true, "hsl(": true, "hsla(": true, "hwb(": true,
}

// namedColors lists color names shorter than their shortest hex form.
var namedColors = map[string]string{
	"#f00":    "red",
	"#000080": "navy",
	"#008080": "teal",
	"#808080": "gray",
	"#808000": "olive",
	"#800080": "purple",
	"#800000": "maroon",
	"#c0c0c0": "silver",
	"#ffa500": "orange",
	"#d2b48c": "tan",
	"#f5f5dc": "beige",
	"#f0ffff": "azure",
	"#ffe4c4": "bisque",
	"#ff7f50": "coral",
	"#fffff0": "ivory",
	"#f0e68c": "khaki",
	"#faf0e6": "linen",
	"#da70d6": "orchid",
	"#cd853f": "peru",
	"#ffc0cb": "pink",
	"#dda0dd": "plum",
	"#fa8072": "salmon",
	"#a0522d": "sienna",
	"#fffafa": "snow",
	"#ff6347": "tomato",
	"#ee82ee": "violet",
	"#f5deb3": "wheat",
	"#4b0082": "indigo",
	"#ffd700": "gold",
	"#008000": "green",
	"#a52a2a": "brown",
}

// minifyValue shortens numbers, zero lengths, colors and font weights.
// Custom property values are kept as written.
func minifyValue(name string, value []ast.Token, t *targets.Browsers) []ast.Token {
	if strings.HasPrefix(name, "--") {
		return value
	}
	var (
		out    = make([]ast.Token, 0, len(value))
		colors = colorProperties[stripVendor(name)]
		zeros  = name != "flex"
		depth  int
	)
	for i := 0; i < len(value); i++ {
		tok := value[i]
		switch tok.Type {
		case css.FunctionToken:
			if colors && depth == 0 && colorFunctions[strings.ToLower(tok.Data)] {
				if end := matchingClose(value, i); end > 0 {
					if c, ok := minifyColor(ast.TokensString(value[i:end+1]), t); ok {
						out = append(out, c)
						i = end
						continue
					}
				}
			}
			depth++
		case css.LeftParenthesisToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			depth--
		case css.NumberToken, css.PercentageToken, css.DimensionToken:
			tok.Data = minifyNumber(tok.Type, tok.Data, zeros && depth == 0)
		case css.HashToken:
			if colors {
				if c, ok := minifyColor(tok.Data, t); ok {
					tok = c
				}
			}
		case css.IdentToken:
			if colors && depth == 0 && !isHexDigits(tok.Data) {
				if c, ok := minifyColor(tok.Data, nil); ok {
					tok = c
				}
			}
		}
		out = append(out, tok)
	}
	if name == "font-weight" && len(out) == 1 {
		switch {
		case out[0].IsIdent("normal"):
			out[0] = ast.Token{Type: css.NumberToken, Data: "400"}
		case out[0].IsIdent("bold"):
			out[0] = ast.Token{Type: css.NumberToken, Data: "700"}
		}
	}
	return out
}

func isHexDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// splitNumber splits a numeric token into number and unit.
func splitNumber(s string) (string, string) {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	if i+1 < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if s[j] == '+' || s[j] == '-' {
			j++
		}
		if j < len(s) && s[j] >= '0' && s[j] <= '9' {
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			i = j
		}
	}
	return s[:i], s[i:]
}

// minifyNumber drops redundant zeros and signs. Zero lengths lose their
// unit when dropUnit is set.
func minifyNumber(tt css.TokenType, data string, dropUnit bool) string {
	num, unit := splitNumber(data)
	if num == "" || strings.ContainsAny(num, "eE") {
		return data
	}
	sign := ""
	switch num[0] {
	case '+':
		num = num[1:]
	case '-':
		sign, num = "-", num[1:]
	}
	intPart, frac, _ := strings.Cut(num, ".")
	intPart = strings.TrimLeft(intPart, "0")
	frac = strings.TrimRight(frac, "0")

	var out string
	switch {
	case intPart == "" && frac == "":
		out = "0"
	case frac == "":
		out = intPart
	default:
		out = intPart + "." + frac
	}
	if out == "0" {
		sign = ""
		if tt == css.DimensionToken && dropUnit && lengthUnits[strings.ToLower(unit)] {
			return "0"
		}
	}
	return sign + out + unit
}

// minifyColor returns the shortest notation of an opaque color. Colors with
// transparency use hex alpha notation when all targets support it, pass nil
// targets to leave them alone.
func minifyColor(text string, t *targets.Browsers) (ast.Token, bool) {
	c, err := csscolorparser.Parse(text)
	if err != nil {
		return ast.Token{}, false
	}
	r, g, b, a := channel(c.R), channel(c.G), channel(c.B), channel(c.A)
	if a != 255 {
		if t == nil || !targets.HexAlphaColors.IsCompatible(t) {
			return ast.Token{}, false
		}
		return ast.Token{Type: css.HashToken, Data: shortHex(r, g, b, a, true)}, true
	}
	hex := shortHex(r, g, b, 255, false)
	if name, ok := namedColors[hex]; ok {
		return ast.Token{Type: css.IdentToken, Data: name}, true
	}
	return ast.Token{Type: css.HashToken, Data: hex}, true
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

func shortHex(r, g, b, a uint8, alpha bool) string {
	short := r>>4 == r&15 && g>>4 == g&15 && b>>4 == b&15 && (!alpha || a>>4 == a&15)
	switch {
	case short && alpha:
		return fmt.Sprintf("#%x%x%x%x", r&15, g&15, b&15, a&15)
	case short:
		return fmt.Sprintf("#%x%x%x", r&15, g&15, b&15)
	case alpha:
		return fmt.Sprintf("#%02x%02x%02x%02x", r, g, b, a)
	}
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
