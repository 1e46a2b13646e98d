package validate

import (
	"strings"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhone(t *testing.T) {
	valid := []string{"+39333123456", "+12025550123", "+393331234567890", "+44123456"}
	for _, p := range valid {
		assert.True(t, Phone(p), p)
	}

	invalid := []string{
		"39333123456",       // нет '+'
		"+0333123456",       // ведущий ноль
		"+1234567",          // 7 цифр
		"+1234567890123456", // 16 цифр
		"+39 333 123456",
		"",
	}
	for _, p := range invalid {
		assert.False(t, Phone(p), p)
	}
}

func TestPhone_DigitBounds(t *testing.T) {
	for n := 1; n <= 20; n++ {
		p := "+1" + strings.Repeat("5", n-1)
		assert.Equal(t, n >= 8 && n <= 15, Phone(p), "digits=%d", n)
	}
}

func TestHandle(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"@trader_01", true},
		{"@abcde", true},
		{"@abcd", false},
		{"trader_01", false},
		{"@" + strings.Repeat("a", 32), true},
		{"@" + strings.Repeat("a", 33), false},
		{"@bad-name", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Handle(tt.in), tt.in)
	}
}

func TestBitgetUID(t *testing.T) {
	assert.True(t, BitgetUID("1234567890"))
	assert.False(t, BitgetUID("123456789"))
	assert.False(t, BitgetUID("12345678901"))
	assert.False(t, BitgetUID("12345abcde"))
}

func TestEmail(t *testing.T) {
	assert.True(t, Email("mario.rossi@example.it"))
	assert.False(t, Email("mario.rossi@example"))
	assert.False(t, Email("mario rossi@example.it"))
	assert.False(t, Email("@example.it"))
	assert.Equal(t, "mario@example.it", NormalizeEmail("  Mario@Example.IT "))
}

func TestNewValidator(t *testing.T) {
	type request struct {
		Phone string `validate:"required,phone"`
		Nick  string `validate:"required,handle"`
		UID   string `validate:"required,bitgetuid"`
		Plan  string `validate:"omitempty,plan"`
	}
	v := NewValidator()

	assert.NoError(t, v.Struct(request{Phone: "+393331234567", Nick: "@trader_01", UID: "1234567890", Plan: "yearly"}))
	assert.NoError(t, v.Struct(request{Phone: "+393331234567", Nick: "@trader_01", UID: "1234567890"}))

	err := v.Struct(request{Phone: "333", Nick: "trader", UID: "12", Plan: "WEEKLY"})
	require.Error(t, err)
	var tags []string
	for _, fe := range err.(validator.ValidationErrors) {
		tags = append(tags, fe.Tag())
	}
	assert.ElementsMatch(t, []string{"phone", "handle", "bitgetuid", "plan"}, tags)
}
