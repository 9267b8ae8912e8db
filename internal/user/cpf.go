package user

import (
	"regexp"
	"strings"
)

var (
	cpfFormatted = regexp.MustCompile(`^\d{3}\.\d{3}\.\d{3}-\d{2}$`)
	cpfDigits    = regexp.MustCompile(`^\d{11}$`)
)

// NormalizeCPF はCPFから区切り文字を除いた数字11桁を返す。
// 書式が不正な場合はfalseを返す。
func NormalizeCPF(text string) (string, bool) {
	text = strings.TrimSpace(text)
	switch {
	case cpfDigits.MatchString(text):
		return text, true
	case cpfFormatted.MatchString(text):
		return strings.NewReplacer(".", "", "-", "").Replace(text), true
	}
	return "", false
}

// ValidateCPF はCPFの書式（000.000.000-00 または数字11桁）を検証する。
// strict が true の場合は検査数字2桁も検証し、全桁同一の番号を拒否する。
func ValidateCPF(text string, strict bool) bool {
	digits, ok := NormalizeCPF(text)
	if !ok {
		return false
	}
	if !strict {
		return true
	}
	return validCheckDigits(digits)
}

// validCheckDigits はモジュラス11による検査数字を検証する。
func validCheckDigits(digits string) bool {
	if strings.Count(digits, digits[:1]) == len(digits) {
		return false
	}

	d := make([]int, len(digits))
	for i, r := range digits {
		d[i] = int(r - '0')
	}

	for pos := 9; pos <= 10; pos++ {
		sum := 0
		for i := 0; i < pos; i++ {
			sum += d[i] * (pos + 1 - i)
		}
		check := (sum * 10) % 11
		if check == 10 {
			check = 0
		}
		if check != d[pos] {
			return false
		}
	}
	return true
}
