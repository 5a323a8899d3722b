package compiler

import (
	"bytes"
	"strings"
	"testing"

	"wsrb/internal/vm"
	"wsrb/internal/wsformat"
)

// runSource compiles src and interprets the resulting IR directly.
func runSource(t *testing.T, src, stdin string) string {
	t.Helper()
	prog, err := CompileSource("test.wsrb", src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var out bytes.Buffer
	m, err := vm.New(prog, strings.NewReader(stdin), &out)
	if err != nil {
		t.Fatalf("vm: %v", err)
	}
	if err := m.Run(); err != nil {
		t.Fatalf("run: %v\noutput so far: %q", err, out.String())
	}
	return out.String()
}

func expectOutput(t *testing.T, src, stdin, want string) {
	t.Helper()
	if got := runSource(t, src, stdin); got != want {
		t.Errorf("output = %q, want %q\nsource:\n%s", got, want, src)
	}
}

func TestEndToEndScenarios(t *testing.T) {
	tests := []struct {
		name   string
		source string
		stdin  string
		want   string
	}{
		{
			name:   "arithmetic",
			source: `put_as_number 3 + 2`,
			want:   "5",
		},
		{
			name:   "while countdown",
			source: `x = -10; while x < 0; put_as_number 10 + x; x = x + 1; end`,
			want:   "0123456789",
		},
		{
			name:   "recursive fibonacci",
			source: `def f(n) if n < 2 then 1 else f(n-1)+f(n-2) end end; put_as_number f(10)`,
			want:   "89",
		},
		{
			name:   "array literal and index write",
			source: `x = [1,2,3]; x[1] = 7; put_as_number x[0]; put_as_number x[1]; put_as_number x[2]`,
			want:   "175",
		},
		{
			name:   "hash literal with colliding keys",
			source: `x = {1=>42,12=>4}; put_as_number x[1]; put_as_char ','; put_as_number x[12]`,
			want:   "42,4",
		},
		{
			name: "fizzbuzz",
			source: `
def fizz()
  put_as_char 'f'
  put_as_char 'i'
  put_as_char 'z'
  put_as_char 'z'
end
def buzz()
  put_as_char 'b'
  put_as_char 'u'
  put_as_char 'z'
  put_as_char 'z'
end
get_as_number n
i = 1
while i <= n
  if i % 15 == 0 then
    fizz()
    buzz()
  else
    if i % 3 == 0 then
      fizz()
    else
      if i % 5 == 0 then
        buzz()
      else
        put_as_number i
      end
    end
  end
  put_as_char ' '
  i = i + 1
end`,
			stdin: "15\n",
			want:  "1 2 fizz 4 buzz fizz 7 8 fizz buzz 11 fizz 13 14 fizzbuzz ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectOutput(t, tt.source, tt.stdin, tt.want)
		})
	}
}

func TestTruthiness(t *testing.T) {
	// NIL and FALSE are falsy; zero, empty containers and TRUE are truthy.
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"zero is truthy", `if 0 then put_as_number 1 else put_as_number 2 end`, "1"},
		{"empty array is truthy", `if [] then put_as_number 1 else put_as_number 2 end`, "1"},
		{"empty hash is truthy", `if {} then put_as_number 1 else put_as_number 2 end`, "1"},
		{"true is truthy", `if true then put_as_number 1 else put_as_number 2 end`, "1"},
		{"false is falsy", `if false then put_as_number 1 else put_as_number 2 end`, "2"},
		{"nil is falsy", `if nil then put_as_number 1 else put_as_number 2 end`, "2"},
		{"negation", `put_as_number 1 if !nil; put_as_number 2 if !0`, "1"},
		{"unless", `unless false then put_as_number 1 else put_as_number 2 end`, "1"},
		{"unless truthy", `unless 0 then put_as_number 1 else put_as_number 2 end`, "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectOutput(t, tt.source, "", tt.want)
		})
	}
}

func TestComparisons(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"spaceship", `put_as_number 1 <=> 2; put_as_number 2 <=> 2; put_as_number 3 <=> 2`, "-101"},
		{"less equal", `put_as_number 1 if 2 <= 2; put_as_number 2 if 1 <= 2; put_as_number 3 if 3 <= 2`, "12"},
		{"greater equal", `put_as_number 1 if 2 >= 2; put_as_number 2 if 3 >= 2; put_as_number 3 if 1 >= 2`, "12"},
		{"not equal", `put_as_number 1 if 1 != 2; put_as_number 2 if 2 != 2`, "1"},
		{"equal false across kinds", `put_as_number 1 if [] == 0; put_as_number 2`, "2"},
		{"negative literals", `put_as_number 1 if 0 - 5 < 0 - 4`, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectOutput(t, tt.source, "", tt.want)
		})
	}
}

func TestShortcutConditions(t *testing.T) {
	// The literal forms x == 0, 0 == x, x < 0, 0 < x take the direct
	// JUMP_IF_ZERO / JUMP_IF_NEG path; semantics must not change.
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"eq zero taken", `x = 0; if x == 0 then put_as_number 1 else put_as_number 2 end`, "1"},
		{"eq zero not taken", `x = 3; if x == 0 then put_as_number 1 else put_as_number 2 end`, "2"},
		{"zero eq", `x = 0; if 0 == x then put_as_number 1 else put_as_number 2 end`, "1"},
		{"lt zero taken", `x = 0 - 1; if x < 0 then put_as_number 1 else put_as_number 2 end`, "1"},
		{"lt zero not taken", `x = 0; if x < 0 then put_as_number 1 else put_as_number 2 end`, "2"},
		{"zero lt taken", `x = 1; if 0 < x then put_as_number 1 else put_as_number 2 end`, "1"},
		{"zero lt zero", `x = 0; if 0 < x then put_as_number 1 else put_as_number 2 end`, "2"},
		{"zero lt negative", `x = 0 - 2; if 0 < x then put_as_number 1 else put_as_number 2 end`, "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectOutput(t, tt.source, "", tt.want)
		})
	}
}

func TestConditionalValues(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"if as expression", `x = if true then 5 else 6 end; put_as_number x`, "5"},
		{"if without else yields nil", `x = if false then 5 end; put_as_number 1 if x == nil`, "1"},
		{"modifier binds nil", `x = 100 if false; put_as_number 1 if x == nil`, "1"},
		{"modifier binds value", `x = 100 if true; put_as_number x`, "100"},
		{"while yields nil", `y = while false end; put_as_number 1 if y == nil`, "1"},
		{"case dispatch", `x = 2
case x
when 1 then put_as_number 10
when 2, 3 then put_as_number 20
else put_as_number 30
end`, "20"},
		{"case else", `case 9
when 1 then put_as_number 10
else put_as_number 30
end`, "30"},
		{"case value", `v = case 3 when 3 then 77 end; put_as_number v`, "77"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectOutput(t, tt.source, "", tt.want)
		})
	}
}

func TestExit(t *testing.T) {
	expectOutput(t, `put_as_number 1
exit
put_as_number 2`, "", "1")
}

func TestArrayGrowth(t *testing.T) {
	// Pushing past the initial capacity must preserve every element.
	expectOutput(t, `
a = []
i = 0
while i < 25
  a.push(i)
  i = i + 1
end
put_as_number a.size()
put_as_char ' '
put_as_number a[0]
put_as_char ' '
put_as_number a[12]
put_as_char ' '
put_as_number a[24]`, "", "25 0 12 24")
}

func TestArrayPushPop(t *testing.T) {
	expectOutput(t, `
a = [5]
a.push(7)
put_as_number a.pop()
put_as_number a.pop()
put_as_number 99 if a.pop() == nil
put_as_number a.size()`, "", "75990")
}

func TestHashChains(t *testing.T) {
	// 1, 12, 23 collide mod 11; lookups, overwrites and misses must all
	// walk the chain correctly.
	expectOutput(t, `
h = {}
h[1] = 100
h[12] = 200
h[23] = 300
h[2] = 400
put_as_number h[1]
put_as_number h[12]
put_as_number h[23]
put_as_number h[2]
put_as_number 1 if h[34] == nil
h[12] = 999
put_as_number h[12]`, "", "1002003004001999")
}

func TestHashNegativeKeys(t *testing.T) {
	expectOutput(t, `
h = {}
h[0 - 5] = 7
put_as_number h[0 - 5]
put_as_number 1 if h[6] == nil`, "", "71")
}

func TestLocalsSurviveCalls(t *testing.T) {
	// Deeply nested calls must restore every caller local.
	expectOutput(t, `
def f(n)
  a = n * 10
  b = a + 1
  if n == 0 then
    0
  else
    f(n - 1)
    a + b
  end
end
put_as_number f(3)`, "", "61")
	expectOutput(t, `
def even?(n) if n == 0 then true else odd?(n - 1) end end
def odd?(n) if n == 0 then false else even?(n - 1) end end
put_as_number 1 if even?(10)
put_as_number 2 if odd?(7)`, "", "12")
}

func TestIsA(t *testing.T) {
	expectOutput(t, `
put_as_number 1 if 3.is_a?(Integer)
put_as_number 2 if [].is_a?(Array)
put_as_number 3 if {}.is_a?(Hash)
put_as_number 4 if 3.is_a?(Array)
put_as_number 5 unless nil.is_a?(Integer)
put_as_number 6 if nil.is_a?(Special)
x = 0 - 3
put_as_number 7 if x.is_a?(Integer)`, "", "123567")
}

func TestUserClassMethods(t *testing.T) {
	expectOutput(t, `
class Array
  def second()
    self[1]
  end
  def push_twice(v)
    push(v)
    push(v)
  end
end
a = [1, 2, 3]
put_as_number a.second()
a.push_twice(9)
put_as_number a.size()
put_as_number a[4]`, "", "259")
	// bareword inside a class method falls back to a top-level procedure
	// when the class does not define the name.
	expectOutput(t, `
def shout()
  put_as_char '!'
end
class Array
  def bang()
    shout()
    self.size()
  end
end
put_as_number [4, 5].bang()`, "", "!2")
}

func TestIntegerClassMethods(t *testing.T) {
	expectOutput(t, `
class Integer
  def double()
    self * 2
  end
end
put_as_number 21.double()`, "", "42")
}

func TestSelfAtTopLevel(t *testing.T) {
	expectOutput(t, `
def who()
  if self == nil then 1 else 2 end
end
put_as_number 3 if self.is_a?(Special)`, "", "3")
}

func TestRaise(t *testing.T) {
	out := runSource(t, `raise "boom"
put_as_number 1`, "")
	if out != "test.wsrb:1:1: boom (Error)\n" {
		t.Errorf("output = %q, want the formatted error line and nothing after it", out)
	}
}

func TestDispatchError(t *testing.T) {
	out := runSource(t, `x = 5
x.push(1)
put_as_char '!'`, "")
	if !strings.Contains(out, "Unknown type of receiver (Error)\n") {
		t.Errorf("output %q does not contain the dispatch error line", out)
	}
	if strings.Contains(out, "!") {
		t.Errorf("code after the dispatch error still ran: %q", out)
	}
}

func TestRaiseSentinel(t *testing.T) {
	prog, err := CompileSource("test.wsrb", `raise "halt"`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var out bytes.Buffer
	m, err := vm.New(prog, strings.NewReader(""), &out)
	if err != nil {
		t.Fatalf("vm: %v", err)
	}
	if err := m.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if m.HeapCell(vm.TmpAddr).Cmp(RaiseSentinel) != 0 {
		t.Errorf("TMP = %s after raise, want %s", m.HeapCell(vm.TmpAddr), RaiseSentinel)
	}
}

func TestPrelude(t *testing.T) {
	expectOutput(t, `
put_as_number 3.min(5)
put_as_number 9.max(2)
x = 0 - 7
put_as_number x.abs()
put_as_number 1 if 5.between?(1, 10)
put_as_number 2 unless 0.between?(1, 10)
put_as_number 4.succ()
put_as_number 4.pred()
put_as_number 9 if 0.zero?()`, "", "39712539")
	expectOutput(t, `
a = [4, 5, 6]
put_as_number a.first()
put_as_number a.last()
put_as_number a.sum()
put_as_number a.index(5)
put_as_number 1 if a.include?(6)
put_as_number 2 unless a.include?(9)
put_as_number 3 if [].empty?()
put_as_number 4 unless a.empty?()`, "", "461511234")
}

func TestIOReadBuiltins(t *testing.T) {
	expectOutput(t, `get_as_number x
get_as_char c
put_as_number x * 2
put_as_char c`, "21\nZ", "42Z")
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"undefined method", `nope(1)`},
		{"undefined variable", `put_as_number y`},
		{"wrong arity", `def f(a) a end; f(1, 2)`},
		{"unknown class reopened", `class Foo
def g() 1 end
end`},
		{"unknown class in is_a?", `x = 1; x.is_a?(Widget)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CompileSource("test.wsrb", tt.source); err == nil {
				t.Errorf("CompileSource succeeded, want error")
			}
		})
	}
}

func TestLazyEmission(t *testing.T) {
	// A definition that is never called must produce no code: compiling
	// with and without the unused definition yields programs whose
	// function segments differ only by nothing at all.
	with, err := CompileSource("test.wsrb", `def unused(a, b, c) a + b + c end
put_as_number 1`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	without, err := CompileSource("test.wsrb", `put_as_number 1`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(with) != len(without) {
		t.Errorf("unused definition emitted code: %d instructions vs %d", len(with), len(without))
	}
}

func TestCompiledProgramSurvivesWireRoundTrip(t *testing.T) {
	// Compile, encode to Whitespace text, decode, run: the program must
	// behave identically to the directly interpreted IR.
	prog, err := CompileSource("test.wsrb", `def f(n) if n < 2 then 1 else f(n-1)+f(n-2) end end; put_as_number f(10)`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	decoded, err := wsformat.Decode(wsformat.Encode(prog))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(prog) {
		t.Fatalf("round trip changed length: %d vs %d", len(decoded), len(prog))
	}
	var out bytes.Buffer
	m, err := vm.New(decoded, strings.NewReader(""), &out)
	if err != nil {
		t.Fatalf("vm: %v", err)
	}
	if err := m.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.String() != "89" {
		t.Errorf("round-tripped program printed %q, want %q", out.String(), "89")
	}
}
