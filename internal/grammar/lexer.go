// Package grammar parses cminus-f source text into a concrete syntax tree
// and lowers it into internal/ast.
package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// CminusLexer tokenizes cminus-f source. Float must be tried before
// Integer so "3.5" isn't split into an integer token followed by a stray
// "." punctuation token.
var CminusLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `//[^\n]*`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Float", `[0-9]+\.[0-9]+`, nil},
		{"Integer", `[0-9]+`, nil},
		{"Operator", `(<=|>=|==|!=|&&|\|\||[-+*/%<>=])`, nil},
		{"Punctuation", `[(){}\[\],;]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
