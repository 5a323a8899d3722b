package wsparser

import (
	"testing"

	"wsrb/internal/wsast"
	"wsrb/internal/wslexer"
)

func parseSource(t *testing.T, src string) []wsast.Stmt {
	t.Helper()
	tokens := wslexer.NewScanner(src).ScanTokens()
	stmts, err := NewParser(tokens, "test.wsrb").Parse()
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return stmts
}

func parseError(t *testing.T, src, description string) {
	t.Helper()
	tokens := wslexer.NewScanner(src).ScanTokens()
	if _, err := NewParser(tokens, "test.wsrb").Parse(); err == nil {
		t.Errorf("%s: expected parse of %q to fail", description, src)
	}
}

func TestParseAssignment(t *testing.T) {
	stmts := parseSource(t, "x = 1 + 2")
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(stmts))
	}
	assign, ok := stmts[0].(*wsast.ExprStmt).Expr.(*wsast.AssignExpr)
	if !ok {
		t.Fatalf("statement is %T, want AssignExpr", stmts[0].(*wsast.ExprStmt).Expr)
	}
	if assign.Name != "x" {
		t.Errorf("assign target = %q, want x", assign.Name)
	}
	if _, ok := assign.Value.(*wsast.BinaryExpr); !ok {
		t.Errorf("assign value is %T, want BinaryExpr", assign.Value)
	}
}

func TestParsePrecedence(t *testing.T) {
	stmts := parseSource(t, "y = 1 + 2 * 3")
	assign := stmts[0].(*wsast.ExprStmt).Expr.(*wsast.AssignExpr)
	add := assign.Value.(*wsast.BinaryExpr)
	if add.Operator != "+" {
		t.Fatalf("root operator = %q, want +", add.Operator)
	}
	mul, ok := add.Right.(*wsast.BinaryExpr)
	if !ok || mul.Operator != "*" {
		t.Errorf("right of + is %v, want the * subtree", add.Right)
	}
}

func TestParseDef(t *testing.T) {
	stmts := parseSource(t, "def f(a, b) a + b end")
	def, ok := stmts[0].(*wsast.DefStmt)
	if !ok {
		t.Fatalf("statement is %T, want DefStmt", stmts[0])
	}
	if def.Name != "f" || len(def.Params) != 2 || def.Class != "" {
		t.Errorf("def = %+v, want f(a, b) at top level", def)
	}
}

func TestParseClass(t *testing.T) {
	stmts := parseSource(t, "class Array\n def second() self[1] end\n def pair?() true end\nend")
	cls, ok := stmts[0].(*wsast.ClassStmt)
	if !ok {
		t.Fatalf("statement is %T, want ClassStmt", stmts[0])
	}
	if cls.Name != "Array" || len(cls.Methods) != 2 {
		t.Fatalf("class = %q with %d methods, want Array with 2", cls.Name, len(cls.Methods))
	}
	if cls.Methods[0].Class != "Array" {
		t.Errorf("method class = %q, want Array", cls.Methods[0].Class)
	}
	if cls.Methods[1].Name != "pair?" {
		t.Errorf("second method = %q, want pair?", cls.Methods[1].Name)
	}
}

func TestParseOperatorMethodNames(t *testing.T) {
	stmts := parseSource(t, "class Array\n def [](i) i end\n def []=(i, v) v end\nend")
	cls := stmts[0].(*wsast.ClassStmt)
	if cls.Methods[0].Name != "[]" || cls.Methods[1].Name != "[]=" {
		t.Errorf("method names = %q %q, want [] and []=", cls.Methods[0].Name, cls.Methods[1].Name)
	}
}

func TestParseIndexAssignment(t *testing.T) {
	stmts := parseSource(t, "x[1] = 7")
	set, ok := stmts[0].(*wsast.ExprStmt).Expr.(*wsast.IndexSetExpr)
	if !ok {
		t.Fatalf("statement is %T, want IndexSetExpr", stmts[0].(*wsast.ExprStmt).Expr)
	}
	if _, ok := set.Object.(*wsast.VarExpr); !ok {
		t.Errorf("index target is %T, want VarExpr", set.Object)
	}
}

func TestParseStatementModifierOnAssignment(t *testing.T) {
	// The modifier wraps the right-hand side, so the binding still happens.
	stmts := parseSource(t, "x = 100 if false")
	assign, ok := stmts[0].(*wsast.ExprStmt).Expr.(*wsast.AssignExpr)
	if !ok {
		t.Fatalf("statement is %T, want AssignExpr", stmts[0].(*wsast.ExprStmt).Expr)
	}
	if _, ok := assign.Value.(*wsast.IfExpr); !ok {
		t.Errorf("assign value is %T, want IfExpr", assign.Value)
	}
}

func TestParseCase(t *testing.T) {
	stmts := parseSource(t, "case x\nwhen 1, 2 then 10\nwhen 3 then 20\nelse 30\nend")
	c, ok := stmts[0].(*wsast.ExprStmt).Expr.(*wsast.CaseExpr)
	if !ok {
		t.Fatalf("statement is %T, want CaseExpr", stmts[0].(*wsast.ExprStmt).Expr)
	}
	if len(c.Whens) != 2 || len(c.Whens[0].Patterns) != 2 || c.Else == nil {
		t.Errorf("case shape = %d whens, %d patterns in first, else %v",
			len(c.Whens), len(c.Whens[0].Patterns), c.Else != nil)
	}
}

func TestParseIsA(t *testing.T) {
	stmts := parseSource(t, "x.is_a?(Array)")
	isa, ok := stmts[0].(*wsast.ExprStmt).Expr.(*wsast.IsAExpr)
	if !ok {
		t.Fatalf("statement is %T, want IsAExpr", stmts[0].(*wsast.ExprStmt).Expr)
	}
	if isa.ClassName != "Array" {
		t.Errorf("class name = %q, want Array", isa.ClassName)
	}
}

func TestParseIOWithoutParens(t *testing.T) {
	stmts := parseSource(t, "put_as_number 3 + 2")
	io, ok := stmts[0].(*wsast.ExprStmt).Expr.(*wsast.IOExpr)
	if !ok {
		t.Fatalf("statement is %T, want IOExpr", stmts[0].(*wsast.ExprStmt).Expr)
	}
	if io.Kind != wsast.IOPutNumber {
		t.Errorf("kind = %q, want %q", io.Kind, wsast.IOPutNumber)
	}
	if _, ok := io.Arg.(*wsast.BinaryExpr); !ok {
		t.Errorf("arg is %T, want BinaryExpr", io.Arg)
	}
}

func TestParseErrors(t *testing.T) {
	parseError(t, `x = "ab"`, "multi-character string literal")
	parseError(t, "class A\nclass B\nend\nend", "nested class")
	parseError(t, "1 = 2", "invalid assignment target")
	parseError(t, "def f( end", "malformed parameter list")
	parseError(t, "get_as_number 1 + 2", "read into non-variable")
	parseError(t, "if x then 1", "unterminated if")
}
