package model

// Canonical language names stored on submissions.
const (
	LanguageCPP        = "cpp"
	LanguageJava       = "java"
	LanguageJavaScript = "javascript"
)

// Language pairs the canonical name with the execution engine's numeric id.
type Language struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}
