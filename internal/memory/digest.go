package memory

import "fmt"

const (
	digestHeadLen = 200
	digestTailLen = 200
)

// Digest produces a fixed-format summary of code for prompt context: head
// and tail of the text with the total length in between, so prompts stay
// small while the code remains recognisable. Short code is returned
// unchanged.
func Digest(code string) string {
	runes := []rune(code)
	if len(runes) <= digestHeadLen+digestTailLen {
		return code
	}
	head := string(runes[:digestHeadLen])
	tail := string(runes[len(runes)-digestTailLen:])
	return fmt.Sprintf("%s\n/* ... %d chars total ... */\n%s", head, len(runes), tail)
}
