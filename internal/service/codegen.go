package service

import (
	"math/rand/v2"
	"strconv"
)

// CodeGenerator produces verification codes for new requests.
type CodeGenerator func() string

// GenerateVerificationCode returns a 5-digit code drawn uniformly from
// [10000, 99999]. It is a correlation handle shown to the requester, not a secret.
func GenerateVerificationCode() string {
	return strconv.Itoa(10000 + rand.IntN(90000))
}
