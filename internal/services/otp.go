package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

// CodeGenerator produces OTP codes
type CodeGenerator func() (string, error)

// NumericCode returns a generator of uniformly random n-digit codes with no
// leading zero, e.g. [100000, 999999] for n = 6
func NumericCode(n int) CodeGenerator {
	low := pow10(n - 1)
	span := big.NewInt(9 * low)

	return func() (string, error) {
		v, err := rand.Int(rand.Reader, span)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		return strconv.FormatInt(low+v.Int64(), 10), nil
	}
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}
