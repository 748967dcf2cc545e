package unit

const (
	// https://en.wikipedia.org/wiki/Kibibyte
	Byte     = 1
	Kibibyte = 1024 * Byte
	Mebibyte = 1024 * Kibibyte
)
