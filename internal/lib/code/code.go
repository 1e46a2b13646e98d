// Package code генерирует короткие коды привязки аккаунтов.
package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet без визуально похожих символов (0/O, 1/I/L).
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Length длина кода.
const Length = 8

// Generator возвращает новый код. Подменяется в тестах.
type Generator func() (string, error)

// New генерирует код длины Length из Alphabet.
func New() (string, error) {
	const op = "code.New"

	max := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, Length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}
