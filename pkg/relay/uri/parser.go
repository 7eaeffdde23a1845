package uri

// Parser is a recursive-descent parser over Lexer tokens. A Parser is reused
// across request targets via Reset; it is not safe for concurrent use.
type Parser struct {
	lex Lexer
	src string
	cur Token

	// path accumulates path lexemes; reused between parses.
	path []byte
}

// NewParser returns a Parser ready for Reset.
func NewParser() *Parser {
	return &Parser{path: make([]byte, 0, 64)}
}

// Parse decomposes a single relative URL with a throwaway Parser.
func Parse(s string) (URL, error) {
	p := NewParser()
	p.Reset(s)
	return p.Parse()
}

// Reset points the parser at s and primes the lookahead. Nothing from the
// previous input survives a Reset.
func (p *Parser) Reset(s string) {
	p.src = s
	p.lex.Reset(s)
	p.path = p.path[:0]
	p.cur = Token{}
	p.advance()
}

// Parse consumes the whole input set by Reset.
func (p *Parser) Parse() (URL, error) {
	if len(p.src) == 0 {
		return URL{}, ErrEmpty
	}

	path, err := p.parsePath()
	if err != nil {
		return URL{}, err
	}

	switch p.cur.Tag {
	case TokenEOS:
		return PathURL(path), nil
	case TokenQuestion:
		p.advance()
		params, err := p.parseParams()
		if err != nil {
			return URL{}, err
		}
		return ParamsURL(path, params), nil
	default:
		return URL{}, p.unexpected(TokenQuestion)
	}
}

// advance moves the lookahead to the next meaningful token. Unknown bytes are
// dropped here so the grammar never sees them.
func (p *Parser) advance() {
	for {
		p.cur = p.lex.Next()
		if p.cur.Tag != TokenUnknown {
			return
		}
	}
}

// consume returns the lookahead if it matches want (TokenAny matches
// everything) and advances past it.
func (p *Parser) consume(want TokenTag) (Token, error) {
	if want != TokenAny && p.cur.Tag != want {
		return Token{}, p.unexpected(want)
	}
	tok := p.cur
	p.advance()
	return tok, nil
}

func (p *Parser) unexpected(want TokenTag) error {
	return &ParseError{
		Pos:  p.cur.Start,
		Want: want,
		Got:  p.cur.Tag,
		Err:  ErrUnexpectedToken,
	}
}

func (p *Parser) parsePath() (string, error) {
	root, err := p.consume(TokenSlash)
	if err != nil {
		return "", err
	}
	p.path = append(p.path, root.Lexeme(p.src)...)

	for {
		switch p.cur.Tag {
		case TokenSlash, TokenWord, TokenDot:
			p.path = append(p.path, p.cur.Lexeme(p.src)...)
			p.advance()
		default:
			return string(p.path), nil
		}
	}
}

func (p *Parser) parseParams() (map[string]string, error) {
	params := make(map[string]string)

	// "/path?" carries an empty query.
	if p.cur.Tag == TokenEOS {
		return params, nil
	}

	for {
		key, value, err := p.parseParamPair()
		if err != nil {
			return nil, err
		}
		params[key] = value

		switch p.cur.Tag {
		case TokenAmpersand:
			p.advance()
		case TokenEOS:
			return params, nil
		default:
			return nil, p.unexpected(TokenAmpersand)
		}
	}
}

func (p *Parser) parseParamPair() (string, string, error) {
	key, err := p.consume(TokenWord)
	if err != nil {
		return "", "", err
	}
	if _, err := p.consume(TokenEquals); err != nil {
		return "", "", err
	}
	value, err := p.consume(TokenWord)
	if err != nil {
		return "", "", err
	}
	return key.Lexeme(p.src), value.Lexeme(p.src), nil
}
