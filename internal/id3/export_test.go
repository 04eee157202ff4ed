package id3

// DecodeSyncsafe exposes syncsafe integer decoding.
func DecodeSyncsafe(b []byte) (int, bool) {
	return decodeSyncsafe(b)
}
