// Package preprocess holds the legacy character-level input path used by
// models that take a fixed-width vector of normalized bytes.
package preprocess

// Width is the fixed length of the legacy input vector.
const Width = 512

// Bytes maps each byte of text to b/255 and pads or truncates the tail to
// Width. Bytes are treated as unsigned.
func Bytes(text string) []float32 {
	out := make([]float32, Width)
	for i := 0; i < len(text) && i < Width; i++ {
		out[i] = float32(text[i]) / 255.0
	}
	return out
}
