package utils

import (
	"regexp"
	"strings"
)

var (
	nonDigit   = regexp.MustCompile(`\D`)
	cnpjDigits = regexp.MustCompile(`^[0-9]{14}$`)
)

var (
	firstCheckWeights  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	secondCheckWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// CleanCNPJ removes all non-numeric characters from CNPJ
func CleanCNPJ(cnpj string) string {
	return nonDigit.ReplaceAllString(cnpj, "")
}

// FormatCNPJ formats CNPJ with dots, slash and dash (XX.XXX.XXX/XXXX-XX)
func FormatCNPJ(cnpj string) string {
	cleaned := CleanCNPJ(cnpj)
	if len(cleaned) != 14 {
		return cnpj
	}

	return cleaned[:2] + "." + cleaned[2:5] + "." + cleaned[5:8] + "/" + cleaned[8:12] + "-" + cleaned[12:14]
}

// HasCNPJShape reports whether s is exactly 14 ASCII digits, with no formatting
func HasCNPJShape(s string) bool {
	return cnpjDigits.MatchString(s)
}

// IsValidCNPJ validates CNPJ using the official check digit algorithm
func IsValidCNPJ(cnpj string) bool {
	cleaned := CleanCNPJ(cnpj)
	if len(cleaned) != 14 {
		return false
	}
	if isAllSameDigit(cleaned) {
		return false
	}

	digits := make([]int, 14)
	for i := 0; i < 14; i++ {
		digits[i] = int(cleaned[i] - '0')
	}

	return checkDigit(digits[:12], firstCheckWeights) == digits[12] &&
		checkDigit(digits[:13], secondCheckWeights) == digits[13]
}

// ValidateCNPJ applies the shape check and, when strict, the check digits
func ValidateCNPJ(cnpj string, strict bool) bool {
	if !HasCNPJShape(cnpj) {
		return false
	}
	return !strict || IsValidCNPJ(cnpj)
}

func isAllSameDigit(s string) bool {
	return s != "" && strings.Count(s, s[:1]) == len(s)
}

func checkDigit(digits []int, weights []int) int {
	sum := 0
	for i, digit := range digits {
		sum += digit * weights[i]
	}

	remainder := sum % 11
	if remainder < 2 {
		return 0
	}
	return 11 - remainder
}
