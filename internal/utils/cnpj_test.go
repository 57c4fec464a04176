package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanAndFormatCNPJ(t *testing.T) {
	assert.Equal(t, "11222333000181", CleanCNPJ("11.222.333/0001-81"))
	assert.Equal(t, "11.222.333/0001-81", FormatCNPJ("11222333000181"))
	assert.Equal(t, "123", FormatCNPJ("123"))
}

func TestHasCNPJShape(t *testing.T) {
	assert.True(t, HasCNPJShape("00000000000191"))
	assert.False(t, HasCNPJShape("00.000.000/0001-91"))
	assert.False(t, HasCNPJShape("0000000000019"))
	assert.False(t, HasCNPJShape("0000000000019a"))
	assert.False(t, HasCNPJShape("000000000001910"))
}

func TestIsValidCNPJ(t *testing.T) {
	assert.True(t, IsValidCNPJ("11222333000181"))
	assert.True(t, IsValidCNPJ("00000000000191"))
	assert.False(t, IsValidCNPJ("11222333000182"))
	assert.False(t, IsValidCNPJ("11111111111111"))
}

func TestValidateCNPJ(t *testing.T) {
	assert.True(t, ValidateCNPJ("11222333000182", false))
	assert.False(t, ValidateCNPJ("11222333000182", true))
	assert.True(t, ValidateCNPJ("11222333000181", true))
	assert.False(t, ValidateCNPJ("11.222.333/0001-81", false))
}

func TestIsSafeFileID(t *testing.T) {
	assert.True(t, IsSafeFileID("certidao_123"))
	assert.True(t, IsSafeFileID("certidao.v2"))
	assert.False(t, IsSafeFileID(""))
	assert.False(t, IsSafeFileID(".."))
	assert.False(t, IsSafeFileID("../etc/passwd"))
	assert.False(t, IsSafeFileID(`a\b`))
}
