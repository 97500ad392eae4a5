package services

import "crypto/rand"

const (
	trackingPrefix    = "TRK-"
	trackingAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	trackingSuffixLen = 8
)

// GenerateTrackingID returns a human-presentable shipment identifier such as
// TRK-7F2K9QXZ. Uniqueness is probabilistic; there is no global collision
// check.
func GenerateTrackingID() string {
	buf := make([]byte, trackingSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		panic("tracking id entropy unavailable: " + err.Error())
	}

	out := make([]byte, 0, len(trackingPrefix)+trackingSuffixLen)
	out = append(out, trackingPrefix...)
	for _, b := range buf {
		out = append(out, trackingAlphabet[int(b)%len(trackingAlphabet)])
	}
	return string(out)
}
