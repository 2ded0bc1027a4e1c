package numfmt

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"github.com/xuri/nfp"
)

// ErrUnsupported indicates the format code cannot render the value.
var ErrUnsupported = errors.New("numfmt: unsupported format")

// Formatter renders values for one workbook. Parsed codes are cached, so a
// Formatter is not safe for concurrent use.
type Formatter struct {
	date1904 bool
	cache    map[string][]nfp.Section
}

// New returns a Formatter. date1904 selects the 1904 serial date epoch.
func New(date1904 bool) *Formatter {
	return &Formatter{date1904: date1904, cache: make(map[string][]nfp.Section)}
}

// SetDate1904 switches the serial date epoch.
func (f *Formatter) SetDate1904(v bool) {
	f.date1904 = v
}

func (f *Formatter) sections(code string) []nfp.Section {
	if s, ok := f.cache[code]; ok {
		return s
	}
	p := nfp.NumberFormatParser()
	s := p.Parse(code)
	f.cache[code] = s
	return s
}

// Format renders v through the format code.
func (f *Formatter) Format(v float64, code string) (string, error) {
	if IsGeneral(code) {
		return formatGeneral(v), nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", ErrUnsupported
	}
	sec, ownNegative, ok := pickSection(f.sections(code), v)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, code)
	}
	if hasDateTokens(sec.Items) {
		if v < 0 {
			return "", fmt.Errorf("%w: negative date %v", ErrUnsupported, v)
		}
		return f.formatDate(v, sec.Items)
	}
	s, err := formatNumber(math.Abs(v), sec.Items)
	if err != nil {
		return "", err
	}
	if v < 0 && !ownNegative {
		s = "-" + s
	}
	return s, nil
}

// pickSection selects the positive, negative or zero section for v.
func pickSection(sections []nfp.Section, v float64) (nfp.Section, bool, bool) {
	if len(sections) == 0 {
		return nfp.Section{}, false, false
	}
	idx, own := 0, false
	switch {
	case v < 0 && len(sections) >= 2 && sections[1].Type != nfp.TokenSectionText:
		idx, own = 1, true
	case v == 0 && len(sections) >= 3 && sections[2].Type != nfp.TokenSectionText:
		idx = 2
	}
	sec := sections[idx]
	if sec.Type == nfp.TokenSectionText {
		return nfp.Section{}, false, false
	}
	return sec, own, true
}

func hasDateTokens(items []nfp.Token) bool {
	for _, tok := range items {
		if tok.TType == nfp.TokenTypeDateTimes || tok.TType == nfp.TokenTypeElapsedDateTimes {
			return true
		}
	}
	return false
}

func isPlaceholder(tok nfp.Token) bool {
	switch tok.TType {
	case nfp.TokenTypeZeroPlaceHolder, nfp.TokenTypeHashPlaceHolder, nfp.TokenTypeDigitalPlaceHolder:
		return true
	}
	return false
}

// formatGeneral mimics the General format: at most eleven significant
// characters, scientific notation for very large or small magnitudes.
func formatGeneral(v float64) string {
	a := math.Abs(v)
	if a == 0 {
		return "0"
	}
	if a >= 1e11 || a < 1e-9 {
		return strconv.FormatFloat(v, 'E', 5, 64)
	}
	digits := 10 - int(math.Floor(math.Log10(a)))
	if digits < 0 {
		digits = 0
	}
	s := strconv.FormatFloat(v, 'f', digits, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

type numberLayout struct {
	intHolders  int
	intZeros    int
	fracHolders int
	fracZeros   int
	expZeros    int
	percent     int
	scale       int
	thousands   bool
	exp         bool
	fraction    int
}

func scanNumber(items []nfp.Token) numberLayout {
	l := numberLayout{fraction: -1}
	phase := 0
	for i, tok := range items {
		switch tok.TType {
		case nfp.TokenTypeZeroPlaceHolder, nfp.TokenTypeHashPlaceHolder, nfp.TokenTypeDigitalPlaceHolder:
			n := len(tok.TValue)
			zero := tok.TType == nfp.TokenTypeZeroPlaceHolder
			switch phase {
			case 0:
				l.intHolders += n
				if zero {
					l.intZeros += n
				}
			case 1:
				l.fracHolders += n
				if zero {
					l.fracZeros += n
				}
			default:
				l.expZeros += n
			}
		case nfp.TokenTypeDecimalPoint:
			if phase == 0 {
				phase = 1
			}
		case nfp.TokenTypeExponential:
			l.exp = true
			phase = 2
		case nfp.TokenTypePercent:
			l.percent += len(tok.TValue)
		case nfp.TokenTypeFraction:
			l.fraction = i
		case nfp.TokenTypeThousandsSeparator:
			if phase == 0 && placeholderFollows(items[i+1:]) {
				l.thousands = true
			} else if phase == 0 {
				l.scale++
			}
		}
	}
	return l
}

func placeholderFollows(items []nfp.Token) bool {
	for _, tok := range items {
		if tok.TType == nfp.TokenTypeDecimalPoint || tok.TType == nfp.TokenTypeExponential {
			return false
		}
		if isPlaceholder(tok) {
			return true
		}
	}
	return false
}

func formatNumber(x float64, items []nfp.Token) (string, error) {
	l := scanNumber(items)
	x *= math.Pow(100, float64(l.percent))
	x /= math.Pow(1000, float64(l.scale))
	if l.fraction >= 0 {
		return formatFraction(x, items, l.fraction)
	}

	var intStr, fracStr, expSign, expStr string
	if l.exp {
		m, e := scientific(x, l)
		intStr, fracStr = splitDecimal(strconv.FormatFloat(m, 'f', l.fracHolders, 64))
		expSign = "+"
		if e < 0 {
			expSign = "-"
		}
		expStr = fmt.Sprintf("%0*d", max(l.expZeros, 1), abs(e))
	} else {
		intStr, fracStr = splitDecimal(strconv.FormatFloat(x, 'f', l.fracHolders, 64))
	}
	fracStr = trimFraction(fracStr, l.fracZeros)
	if intStr == "0" && l.intZeros == 0 {
		intStr = ""
	}
	if len(intStr) < l.intZeros {
		intStr = strings.Repeat("0", l.intZeros-len(intStr)) + intStr
	}
	if l.thousands {
		intStr = groupThousands(intStr)
	}

	var b strings.Builder
	intDone, expDone := false, false
	phase := 0
	for _, tok := range items {
		switch tok.TType {
		case nfp.TokenTypeZeroPlaceHolder, nfp.TokenTypeHashPlaceHolder, nfp.TokenTypeDigitalPlaceHolder:
			switch {
			case phase == 0 && !intDone:
				b.WriteString(intStr)
				intDone = true
			case phase == 2 && !expDone:
				b.WriteString(expStr)
				expDone = true
			}
		case nfp.TokenTypeDecimalPoint:
			if phase != 0 {
				b.WriteString(tok.TValue)
				continue
			}
			if !intDone {
				b.WriteString(intStr)
				intDone = true
			}
			b.WriteString(".")
			b.WriteString(fracStr)
			phase = 1
		case nfp.TokenTypeExponential:
			b.WriteString(tok.TValue[:1])
			if expSign == "-" || strings.HasSuffix(tok.TValue, "+") {
				b.WriteString(expSign)
			}
			phase = 2
		case nfp.TokenTypeGeneral, nfp.TokenTypeTextPlaceHolder:
			b.WriteString(formatGeneral(x))
		default:
			writeDecoration(&b, tok)
		}
	}
	return b.String(), nil
}

// writeDecoration handles tokens shared by number and date sections.
func writeDecoration(b *strings.Builder, tok nfp.Token) {
	switch tok.TType {
	case nfp.TokenTypeThousandsSeparator, nfp.TokenTypeColor, nfp.TokenTypeCondition,
		nfp.TokenTypeRepeatsChar, nfp.TokenTypeSwitchArgument:
	case nfp.TokenTypeAlignment:
		b.WriteString(" ")
	case nfp.TokenTypeCurrencyLanguage:
		b.WriteString(currencySymbol(tok))
	default:
		b.WriteString(tok.TValue)
	}
}

func currencySymbol(tok nfp.Token) string {
	for _, part := range tok.Parts {
		if part.Token.TType == nfp.TokenSubTypeCurrencyString {
			return part.Token.TValue
		}
	}
	return ""
}

func scientific(x float64, l numberLayout) (float64, int) {
	if x == 0 {
		return 0, 0
	}
	e := int(math.Floor(math.Log10(x)))
	step := 1
	if l.intHolders > 1 && l.intZeros < l.intHolders {
		step = l.intHolders
		e = floorDiv(e, step) * step
	} else if l.intZeros > 1 {
		e -= l.intZeros - 1
	}
	m := x / math.Pow(10, float64(e))
	if step == 1 && l.intZeros <= 1 {
		if r, _ := strconv.ParseFloat(strconv.FormatFloat(m, 'f', l.fracHolders, 64), 64); r >= 10 {
			e++
			m /= 10
		}
	}
	return m, e
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func splitDecimal(s string) (string, string) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func trimFraction(frac string, keep int) string {
	for len(frac) > keep && strings.HasSuffix(frac, "0") {
		frac = frac[:len(frac)-1]
	}
	return frac
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func formatFraction(x float64, items []nfp.Token, fracIdx int) (string, error) {
	numIdx, denIdx := fracIdx-1, fracIdx+1
	if numIdx < 0 || denIdx >= len(items) || !isPlaceholder(items[numIdx]) {
		return "", ErrUnsupported
	}
	hasWhole := false
	for _, tok := range items[:numIdx] {
		if isPlaceholder(tok) {
			hasWhole = true
		}
	}
	whole, frac := 0.0, x
	if hasWhole {
		whole = math.Floor(x)
		frac = x - whole
	}

	den := items[denIdx]
	var num, d int
	switch {
	case den.TType == nfp.TokenTypeDenominator:
		fixed, err := strconv.Atoi(den.TValue)
		if err != nil || fixed <= 0 {
			return "", ErrUnsupported
		}
		d = fixed
		num = int(math.Round(frac * float64(d)))
	case isPlaceholder(den):
		num, d = approximate(frac, int(math.Pow(10, float64(len(den.TValue))))-1)
	default:
		return "", ErrUnsupported
	}
	if hasWhole && num == d {
		whole++
		num = 0
	}

	numW, denW := len(items[numIdx].TValue), len(den.TValue)
	blank := hasWhole && num == 0
	var b strings.Builder
	wholeDone := false
	for i, tok := range items {
		switch {
		case i < numIdx && isPlaceholder(tok):
			if !wholeDone {
				if whole != 0 || tok.TType == nfp.TokenTypeZeroPlaceHolder || num == 0 {
					b.WriteString(strconv.FormatFloat(whole, 'f', 0, 64))
				}
				wholeDone = true
			}
		case i == numIdx:
			if blank {
				b.WriteString(strings.Repeat(" ", numW))
			} else {
				b.WriteString(padLeft(strconv.Itoa(num), numW))
			}
		case i == fracIdx:
			if blank {
				b.WriteString(" ")
			} else {
				b.WriteString("/")
			}
		case i == denIdx:
			if blank {
				b.WriteString(strings.Repeat(" ", denW))
			} else {
				b.WriteString(padRight(strconv.Itoa(d), denW))
			}
		default:
			writeDecoration(&b, tok)
		}
	}
	return b.String(), nil
}

// approximate finds the closest fraction n/d with d <= maxDen.
func approximate(frac float64, maxDen int) (int, int) {
	bestN, bestD, bestErr := 0, 1, math.Abs(frac)
	for d := 1; d <= maxDen; d++ {
		n := int(math.Round(frac * float64(d)))
		if e := math.Abs(frac - float64(n)/float64(d)); e < bestErr-1e-12 {
			bestN, bestD, bestErr = n, d, e
		}
	}
	return bestN, bestD
}

func padLeft(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return strings.Repeat(" ", w-len(s)) + s
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func (f *Formatter) formatDate(v float64, items []nfp.Token) (string, error) {
	subsec := 0
	for i, tok := range items {
		if tok.TType == nfp.TokenTypeDecimalPoint && i+1 < len(items) && items[i+1].TType == nfp.TokenTypeZeroPlaceHolder {
			subsec = min(len(items[i+1].TValue), 3)
		}
	}
	unit := math.Pow(10, float64(subsec))
	day := math.Floor(v)
	units := int64(math.Round((v - day) * 86400 * unit))
	secs, fracUnits := units/int64(unit), units%int64(unit)
	if secs >= 86400 {
		day++
		secs -= 86400
	}

	base, err := excelize.ExcelDateToTime(day, f.date1904)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	t := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, time.UTC).Add(time.Duration(secs) * time.Second)
	total := int64(day)*86400 + secs
	ampm := hasAmPm(items)

	var b strings.Builder
	afterPoint := false
	for i, tok := range items {
		switch tok.TType {
		case nfp.TokenTypeDateTimes:
			b.WriteString(datePart(items, i, t, ampm))
		case nfp.TokenTypeElapsedDateTimes:
			b.WriteString(elapsedPart(tok.TValue, total))
		case nfp.TokenTypeDecimalPoint:
			b.WriteString(".")
			afterPoint = true
		case nfp.TokenTypeZeroPlaceHolder:
			if afterPoint && subsec > 0 {
				b.WriteString(fmt.Sprintf("%0*d", subsec, fracUnits))
				continue
			}
			b.WriteString(tok.TValue)
		default:
			writeDecoration(&b, tok)
		}
	}
	return b.String(), nil
}

func isAmPm(v string) bool {
	up := strings.ToUpper(v)
	return up == "AM/PM" || up == "A/P"
}

func hasAmPm(items []nfp.Token) bool {
	for _, tok := range items {
		if tok.TType == nfp.TokenTypeDateTimes && isAmPm(tok.TValue) {
			return true
		}
	}
	return false
}

func datePart(items []nfp.Token, i int, t time.Time, ampm bool) string {
	tv := items[i].TValue
	up := strings.ToUpper(tv)
	switch {
	case isAmPm(tv):
		parts := strings.SplitN(tv, "/", 2)
		if t.Hour() >= 12 {
			return parts[1]
		}
		return parts[0]
	case strings.Contains(up, "Y"):
		if len(tv) <= 2 {
			return fmt.Sprintf("%02d", t.Year()%100)
		}
		return strconv.Itoa(t.Year())
	case strings.Contains(up, "E"):
		return strconv.Itoa(t.Year())
	case strings.Contains(up, "M"):
		if len(tv) <= 2 && isMinute(items, i) {
			return pad(t.Minute(), len(tv))
		}
		switch len(tv) {
		case 1, 2:
			return pad(int(t.Month()), len(tv))
		case 3:
			return t.Month().String()[:3]
		case 5:
			return t.Month().String()[:1]
		default:
			return t.Month().String()
		}
	case strings.Contains(up, "D"):
		switch len(tv) {
		case 1, 2:
			return pad(t.Day(), len(tv))
		case 3:
			return t.Weekday().String()[:3]
		default:
			return t.Weekday().String()
		}
	case strings.Contains(up, "H"):
		h := t.Hour()
		if ampm {
			h %= 12
			if h == 0 {
				h = 12
			}
		}
		return pad(h, len(tv))
	case strings.Contains(up, "S"):
		return pad(t.Second(), len(tv))
	}
	return tv
}

// isMinute reports whether an m or mm token at i means minutes: it follows
// an hour token or precedes a seconds token.
func isMinute(items []nfp.Token, i int) bool {
	for j := i - 1; j >= 0; j-- {
		tok := items[j]
		if tok.TType == nfp.TokenTypeElapsedDateTimes {
			return true
		}
		if tok.TType == nfp.TokenTypeDateTimes && !isAmPm(tok.TValue) {
			if strings.ContainsAny(strings.ToUpper(tok.TValue), "HS") {
				return true
			}
			break
		}
	}
	for j := i + 1; j < len(items); j++ {
		tok := items[j]
		if tok.TType == nfp.TokenTypeDateTimes && !isAmPm(tok.TValue) {
			return strings.Contains(strings.ToUpper(tok.TValue), "S")
		}
		if tok.TType == nfp.TokenTypeElapsedDateTimes {
			return strings.Contains(strings.ToUpper(tok.TValue), "S")
		}
	}
	return false
}

func elapsedPart(tv string, total int64) string {
	up := strings.ToUpper(tv)
	var n int64
	switch {
	case strings.Contains(up, "H"):
		n = total / 3600
	case strings.Contains(up, "M"):
		n = total / 60
	case strings.Contains(up, "S"):
		n = total
	default:
		return tv
	}
	return fmt.Sprintf("%0*d", len(tv), n)
}

func pad(n, width int) string {
	if width <= 1 {
		return strconv.Itoa(n)
	}
	return fmt.Sprintf("%02d", n)
}
