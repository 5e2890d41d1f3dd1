package gateway

// Backend boolean tokens
const (
	Yes = "tYES"
	No  = "tNO"
)

// EncodeBool renders b the way the backend expects booleans on the wire
func EncodeBool(b bool) string {
	if b {
		return Yes
	}
	return No
}

// DecodeBool reports whether v is the backend's yes token
func DecodeBool(v string) bool {
	return v == Yes
}
