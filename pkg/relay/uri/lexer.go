// Package uri decomposes an HTTP request target (a relative URL: path plus
// optional query) with a small lexer and a recursive-descent parser.
//
// Grammar:
//
//	relative-url := path ["?" params]
//	path         := "/" (word ["/"])* [file]
//	file         := word "." word
//	params       := param ("&" param)*
//	param        := word "=" word
//	word         := (alnum | "_")+
package uri

// TokenTag classifies a lexical fragment of a relative URL.
type TokenTag uint8

const (
	TokenAny TokenTag = iota // matches any tag in Parser.consume
	TokenUnknown
	TokenColon
	TokenSlash
	TokenDot
	TokenQuestion
	TokenEquals
	TokenAmpersand
	TokenWord
	TokenEOS
)

var tokenTagNames = [...]string{
	TokenAny:       "any",
	TokenUnknown:   "unknown",
	TokenColon:     "':'",
	TokenSlash:     "'/'",
	TokenDot:       "'.'",
	TokenQuestion:  "'?'",
	TokenEquals:    "'='",
	TokenAmpersand: "'&'",
	TokenWord:      "word",
	TokenEOS:       "end of input",
}

func (t TokenTag) String() string {
	if int(t) < len(tokenTagNames) {
		return tokenTagNames[t]
	}
	return "invalid"
}

// Token is a span of the source plus its tag.
type Token struct {
	Start  int
	Length int
	Tag    TokenTag
}

// Lexeme returns the token's text within source.
func (t Token) Lexeme(source string) string {
	end := t.Start + t.Length
	if t.Start < 0 || end > len(source) {
		return ""
	}
	return source[t.Start:end]
}

func isWordByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// Lexer splits a relative URL into tokens. The zero value lexes the empty
// string.
type Lexer struct {
	src string
	pos int
}

// Reset points the lexer at a new source and rewinds it.
func (l *Lexer) Reset(src string) {
	l.src = src
	l.pos = 0
}

// Next returns the next token. Once the input is exhausted it keeps returning
// TokenEOS.
func (l *Lexer) Next() Token {
	if l.pos >= len(l.src) {
		return Token{Start: len(l.src), Length: 0, Tag: TokenEOS}
	}

	switch l.src[l.pos] {
	case ':':
		return l.single(TokenColon)
	case '/':
		return l.single(TokenSlash)
	case '.':
		return l.single(TokenDot)
	case '?':
		return l.single(TokenQuestion)
	case '=':
		return l.single(TokenEquals)
	case '&':
		return l.single(TokenAmpersand)
	}

	if isWordByte(l.src[l.pos]) {
		start := l.pos
		for l.pos < len(l.src) && isWordByte(l.src[l.pos]) {
			l.pos++
		}
		return Token{Start: start, Length: l.pos - start, Tag: TokenWord}
	}

	return l.single(TokenUnknown)
}

func (l *Lexer) single(tag TokenTag) Token {
	start := l.pos
	l.pos++
	return Token{Start: start, Length: 1, Tag: tag}
}
