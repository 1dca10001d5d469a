package constants

// BackendID identifies which recognition backend produced a token set.
type BackendID string

// Stable values (these exact strings appear in results and logs).
const (
	BackendVision BackendID = "GOOGLE_VISION" // primary: Cloud Vision document text detection
	BackendGemini BackendID = "GEMINI_VISION" // fallback: Gemini multimodal recognition
)

func (b BackendID) String() string { return string(b) }
