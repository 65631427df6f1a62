package store

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const (
	userIDPrefix  = "USER_"
	userIDLength  = 9
	userIDSymbols = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	msgIDPrefix   = "MSG_"

	maxIDAttempts = 16
)

func generateUserID() string {
	buf := make([]byte, userIDLength)
	max := big.NewInt(int64(len(userIDSymbols)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		buf[i] = userIDSymbols[n.Int64()]
	}
	return userIDPrefix + string(buf)
}

func generateMessageID() string {
	return msgIDPrefix + uuid.NewString()
}
