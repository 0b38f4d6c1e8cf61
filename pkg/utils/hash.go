package utils

import (
	"crypto/md5"
	"fmt"
)

// HashString returns the hex MD5 digest of the input. Used for
// content-addressed chunk IDs and cache keys, not for security.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}
