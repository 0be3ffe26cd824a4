// Package requestid derives short deterministic identifiers for tracked
// requests.
package requestid

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// HexLen is the length of a generated request id in hex characters.
const HexLen = 16

// timeLayout truncates the timestamp component to the microsecond, so two
// requests from the same device/IP collide only within one microsecond tick.
const timeLayout = "2006-01-02T15:04:05.000000"

// New returns a 16-character hex id derived from the advertising id, the
// source IP, and the timestamp truncated to the microsecond. It is a
// deterministic function of its inputs, not a security primitive: the
// sha256 output is truncated to 64 bits, which is accepted as a
// collision-risk tradeoff for short ids.
func New(advertisingID, ip string, ts time.Time) string {
	sum := sha256.Sum256([]byte(advertisingID + ip + ts.UTC().Format(timeLayout)))
	return hex.EncodeToString(sum[:])[:HexLen]
}
