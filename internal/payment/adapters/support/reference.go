package support

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewReference builds PREFIX_<epoch-millis>_<base36 suffix>.
func NewReference(prefix string) string {
	return newReference(prefix, time.Now())
}

func newReference(prefix string, now time.Time) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "CC"
	}
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), randomBase36(8))
}

func randomBase36(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = base36[int(b)%len(base36)]
	}
	return string(buf)
}
