package grammar

// Program is a full translation unit: an ordered list of top-level variable
// and function declarations.
type Program struct {
	Declarations []*Declaration `@@*`
}

// Declaration disambiguates a top-level function from a top-level variable
// by trying the function production (which commits at its "(") first;
// participle backtracks into VarDecl when that commitment fails.
type Declaration struct {
	Fun *FunDecl `  @@`
	Var *VarDecl `| @@`
}

// TypeSpecifier is one of cminus-f's three base types.
type TypeSpecifier struct {
	Name string `@("int" | "float" | "void")`
}

// VarDecl is a top-level scalar or fixed-size-array variable declaration.
type VarDecl struct {
	Type *TypeSpecifier `@@`
	Name string         `@Ident`
	Len  *int           `( "[" @Integer "]" )? ";"`
}

// Param is one function parameter; Array marks a bare "[]" suffix, which
// decays to a pointer at the IR boundary (internal/irgen), never a
// fixed-length array.
type Param struct {
	Type  *TypeSpecifier `@@`
	Name  string         `@Ident`
	Array bool           `( "[" "]" )?`
}

// FunDecl is a function definition (Body non-nil) or, for the single
// runtime helper neg_idx_except, a bodyless declaration.
type FunDecl struct {
	Type   *TypeSpecifier `@@`
	Name   string         `@Ident "("`
	Params []*Param       `( @@ ( "," @@ )* )? ")"`
	Body   *CompoundStmt  `( @@ | ";" )`
}

// CompoundStmt is a brace-delimited statement block. Unlike the strict
// classic cminus grammar (declarations-then-statements), declarations may
// appear anywhere in the block — DeclStmt is just another Statement
// alternative — since nothing downstream needs the stricter ordering and
// it matches how cminus-f programmers actually write blocks.
type CompoundStmt struct {
	Stmts []*Statement `"{" @@* "}"`
}

// Statement is any statement form. DeclStmt is tried before ExprStmt so a
// leading type keyword is never mistaken for the start of an expression.
type Statement struct {
	Compound  *CompoundStmt  `  @@`
	Decl      *DeclStmt      `| @@`
	Selection *SelectionStmt `| @@`
	Iteration *IterationStmt `| @@`
	Return    *ReturnStmt    `| @@`
	ExprStmt  *ExprStmt      `| @@`
}

// DeclStmt is a local variable declaration, optionally initialized.
type DeclStmt struct {
	Type *TypeSpecifier `@@`
	Name string         `@Ident`
	Len  *int           `( "[" @Integer "]" )?`
	Init *Expression    `( "=" @@ )? ";"`
}

// ExprStmt is a bare expression statement (an assignment or a call used for
// its side effect) or an empty statement.
type ExprStmt struct {
	Expr *Expression `@@? ";"`
}

type SelectionStmt struct {
	Cond *Expression `"if" "(" @@ ")"`
	Then *Statement  `@@`
	Else *Statement  `( "else" @@ )?`
}

type IterationStmt struct {
	Cond *Expression `"while" "(" @@ ")"`
	Body *Statement  `@@`
}

type ReturnStmt struct {
	Value *Expression `"return" @@? ";"`
}

// Expression is an assignment or, failing that, a relational expression.
// The two share an Ident-led prefix, so AssignExpr's "=" commits before
// SimpleExpr is tried.
type Expression struct {
	Assign *AssignExpr `  @@`
	Simple *SimpleExpr `| @@`
}

type AssignExpr struct {
	Target *LValue     `@@ "="`
	Value  *Expression `@@`
}

// LValue is a bare variable or one array element; cminus-f has no
// multi-level indexing surface.
type LValue struct {
	Name  string      `@Ident`
	Index *Expression `( "[" @@ "]" )?`
}

// SimpleExpr is a single relational comparison (or none) over additive
// expressions — cminus-f's relational operators do not associate.
type SimpleExpr struct {
	Left  *AdditiveExpr `@@`
	Op    string        `( @("<=" | ">=" | "<" | ">" | "==" | "!=")`
	Right *AdditiveExpr `  @@ )?`
}

type AdditiveExpr struct {
	Left *Term      `@@`
	Rest []*AddTerm `@@*`
}

type AddTerm struct {
	Op   string `@("+" | "-")`
	Term *Term  `@@`
}

type Term struct {
	Left *Factor      `@@`
	Rest []*MulFactor `@@*`
}

type MulFactor struct {
	Op     string  `@("*" | "/")`
	Factor *Factor `@@`
}

// Factor is the grammar's leaf level: a parenthesized expression, a call, a
// variable/array reference, or a literal. Call is tried before LValue since
// both start with an identifier; participle backtracks to LValue when no
// "(" follows.
type Factor struct {
	Paren *Expression `  "(" @@ ")"`
	Call  *CallExpr   `| @@`
	Var   *LValue     `| @@`
	Neg   *Factor     `| "-" @@`
	Int   *int64      `| @Integer`
	Float *float64    `| @Float`
}

type CallExpr struct {
	Name string        `@Ident "("`
	Args []*Expression `( @@ ( "," @@ )* )? ")"`
}
