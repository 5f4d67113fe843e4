package lexer

// Delimiters are fixed; the C boundary exposes no way to change them.
const (
	blockStart   = "{%"
	blockEnd     = "%}"
	varStart     = "{{"
	varEnd       = "}}"
	commentStart = "{#"
	commentEnd   = "#}"
)

// WhitespaceConfig holds whitespace handling configuration.
type WhitespaceConfig struct {
	KeepTrailingNewline bool
	LstripBlocks        bool
	TrimBlocks          bool
}

// DefaultWhitespace returns the default whitespace configuration.
func DefaultWhitespace() WhitespaceConfig {
	return WhitespaceConfig{}
}
