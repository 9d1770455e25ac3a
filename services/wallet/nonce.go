package wallet

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

var nonceMu struct {
	sync.Mutex
	lastMillis int64
}

// generateNonce combines wall-clock milliseconds, the sub-millisecond
// nanosecond component and random bits. Consecutive calls within the same
// millisecond are pushed apart by a forced minimum delay, so the prefix
// alone already differs between any two nonces handed to the same wallet.
func generateNonce() (string, error) {
	nonceMu.Lock()
	now := time.Now()
	if now.UnixMilli() == nonceMu.lastMillis {
		time.Sleep(time.Millisecond)
		now = time.Now()
	}
	nonceMu.lastMillis = now.UnixMilli()
	nonceMu.Unlock()

	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	random := binary.BigEndian.Uint32(buf[:]) % 1000000

	return fmt.Sprintf("%d-%d-%d", now.UnixMilli(), now.Nanosecond(), random), nil
}
