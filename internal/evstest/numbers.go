package evstest

import (
	"math"
	"strconv"
	"strings"
)

// SigFig rounds n to digits significant figures.
func SigFig(n float64, digits int) float64 {
	if n == 0 || digits <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return n
	}
	v, _ := strconv.ParseFloat(strconv.FormatFloat(n, 'g', digits, 64), 64)
	return v
}

// FormatNumber renders n with digits significant figures.
func FormatNumber(n float64, digits int, thousands, trailingZeros bool) string {
	if n == 0 {
		return "0"
	}
	magnitude := int(math.Floor(math.Log10(math.Abs(n))))
	decimals := max(digits-1-magnitude, 0)
	return formatFixed(SigFig(n, digits), decimals, thousands, trailingZeros)
}

// FormatNumberAdaptive renders n with the decimal places digits significant
// figures of adapt would need, so a column of values lines up with its scale.
func FormatNumberAdaptive(n, adapt float64, digits int, thousands, trailingZeros bool) string {
	if adapt == 0 {
		return FormatNumber(n, digits, thousands, trailingZeros)
	}
	magnitude := int(math.Floor(math.Log10(math.Abs(adapt))))
	decimals := max(digits-1-magnitude, 0)
	return formatFixed(n, decimals, thousands, trailingZeros)
}

func formatFixed(n float64, decimals int, thousands, trailingZeros bool) string {
	s := strconv.FormatFloat(n, 'f', decimals, 64)

	intPart, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac && !trailingZeros {
		frac = strings.TrimRight(frac, "0")
		hasFrac = frac != ""
	}

	if thousands {
		intPart = groupThousands(intPart)
	}
	if hasFrac {
		return intPart + "." + frac
	}
	return intPart
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

func formatNumberArgs(a args, adaptive bool) (string, error) {
	n, err := a.num(0)
	if err != nil {
		return "", err
	}
	i := 1
	var adapt float64
	if adaptive {
		if adapt, err = a.num(1); err != nil {
			return "", err
		}
		i = 2
	}
	digits, err := a.num(i)
	if err != nil {
		return "", err
	}
	thousands, err := a.boolean(i + 1)
	if err != nil {
		return "", err
	}
	trailing, err := a.boolean(i + 2)
	if err != nil {
		return "", err
	}

	if adaptive {
		return FormatNumberAdaptive(n, adapt, int(digits), thousands, trailing), nil
	}
	return FormatNumber(n, int(digits), thousands, trailing), nil
}
