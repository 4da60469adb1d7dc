package tardi

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execTestCases []execTestCase

func (tcs execTestCases) run(t *testing.T) {
	for _, tc := range tcs {
		t.Run(tc.name, tc.run)
	}
}

func execTest(name string) (tc execTestCase) {
	tc.name = name
	return tc
}

type execTestCase struct {
	name    string
	opts    []Option
	inputs  []string
	wantErr error
	expect  []func(t *testing.T, interp *Tardi)
}

func (tc execTestCase) withOptions(opts ...Option) execTestCase {
	tc.opts = append(tc.opts, opts...)
	return tc
}

// do queues inputs executed in order; only the last one may error.
func (tc execTestCase) do(inputs ...string) execTestCase {
	tc.inputs = append(tc.inputs, inputs...)
	return tc
}

func (tc execTestCase) expectErr(err error) execTestCase {
	tc.wantErr = err
	return tc
}

// expectStack asserts the final data stack bottom to top, by repr.
func (tc execTestCase) expectStack(reprs ...string) execTestCase {
	tc.expect = append(tc.expect, func(t *testing.T, interp *Tardi) {
		stack := interp.Stack()
		got := make([]string, len(stack))
		for i, v := range stack {
			got[i] = v.Repr()
		}
		if reprs == nil {
			reprs = []string{}
		}
		assert.Equal(t, reprs, got, "expected stack values")
	})
	return tc
}

func (tc execTestCase) expectOutput(output string) execTestCase {
	var out bytes.Buffer
	tc.opts = append(tc.opts, WithStdout(&out))
	tc.expect = append(tc.expect, func(t *testing.T, interp *Tardi) {
		assert.Equal(t, output, out.String(), "expected output")
	})
	return tc
}

func (tc execTestCase) run(t *testing.T) {
	interp, err := New(tc.opts...)
	require.NoError(t, err, "interpreter construction")

	for i, input := range tc.inputs {
		err = interp.ExecuteString(input)
		if i < len(tc.inputs)-1 {
			require.NoError(t, err, "input %d: %q", i, input)
		}
	}
	if tc.wantErr != nil {
		assert.True(t, errors.Is(err, tc.wantErr),
			"expected error %v, got %+v", tc.wantErr, err)
	} else {
		assert.NoError(t, err, "unexpected execution error")
	}

	for _, expect := range tc.expect {
		expect(t, interp)
	}
}

func TestArithmetic(t *testing.T) {
	execTestCases{
		execTest("add").do("2 3 +").expectStack("5"),
		execTest("subtract").do("10 4 -").expectStack("6"),
		execTest("multiply negative").do("-6 7 *").expectStack("-42"),
		execTest("integer division truncates").do("7 2 /").expectStack("3"),
		execTest("mixed coercion").do("1 2.5 +").expectStack("3.5"),
		execTest("float division").do("1.0 4 /").expectStack("0.25"),
		execTest("integer overflow wraps").
			do("9223372036854775807 1 +").
			expectStack("-9223372036854775808"),
		execTest("division by zero").
			do("1 0 /").
			expectErr(vmErr(ErrDivisionByZero)),
		execTest("float division by zero").
			do("1.0 0.0 /").
			expectErr(vmErr(ErrDivisionByZero)),
		execTest("adding strings fails").
			do(`"a" "b" +`).
			expectErr(vmErr(ErrTypeMismatch)),
	}.run(t)
}

func TestComparison(t *testing.T) {
	execTestCases{
		execTest("equal ints").do("3 3 ==").expectStack("#t"),
		execTest("equal across numeric types").do("3 3.0 ==").expectStack("#t"),
		execTest("less").do("2 3 <").expectStack("#t"),
		execTest("greater").do("2 3 >").expectStack("#f"),
		execTest("not").do("#t !").expectStack("#f"),
		execTest("string order").do(`"apple" "pear" <`).expectStack("#t"),
		execTest("incompatible ordering fails").
			do(`1 "one" <`).
			expectErr(vmErr(ErrTypeMismatch)),
		execTest("incompatible equality fails").
			do(`1 "one" ==`).
			expectErr(vmErr(ErrTypeMismatch)),
	}.run(t)
}

func TestStackOps(t *testing.T) {
	execTestCases{
		execTest("dup drop is a no-op").do("4 dup drop").expectStack("4"),
		execTest("swap swap is a no-op").do("1 2 swap swap").expectStack("1", "2"),
		execTest("rot").do("1 2 3 rot").expectStack("2", "3", "1"),
		execTest("clear").do("1 2 3 clear").expectStack(),
		execTest("stack-size").do("7 8 stack-size").expectStack("7", "8", "2"),
		execTest("return stack round trip").do("1 5 >r r>").expectStack("1", "5"),
		execTest("r@ copies").do("9 >r r@ r> drop").expectStack("9"),
		execTest("underflow").do("drop").expectErr(vmErr(ErrStackUnderflow)),
		execTest("return underflow").do("r>").expectErr(vmErr(ErrReturnStackUnderflow)),
	}.run(t)
}

func TestBootstrapCombinators(t *testing.T) {
	execTestCases{
		execTest("over").do("1 2 over").expectStack("1", "2", "1"),
		execTest("nip").do("1 2 nip").expectStack("2"),
		execTest("tuck").do("1 2 tuck").expectStack("2", "1", "2"),
		execTest("2dup").do("1 2 2dup").expectStack("1", "2", "1", "2"),
		execTest("2drop").do("1 2 3 2drop").expectStack("1"),
		execTest("3drop").do("1 2 3 4 3drop").expectStack("1"),
		execTest("dip").do("1 [ 2 ] dip").expectStack("2", "1"),
		execTest("keep").do("5 [ 1 + ] keep").expectStack("6", "5"),
		execTest("when true").do("#t [ 42 ] when").expectStack("42"),
		execTest("when false").do("#f [ 42 ] when").expectStack(),
		execTest("unless false").do("#f [ 42 ] unless").expectStack("42"),
	}.run(t)
}

func TestConditionals(t *testing.T) {
	execTestCases{
		execTest("if true").do("#t [ 13 ] [ 42 ] if").expectStack("13"),
		execTest("if false").do("#f [ 13 ] [ 42 ] if").expectStack("42"),
		execTest("choose").do("#f 1 2 ?").expectStack("2"),
		execTest("if wants a boolean").
			do("5 [ 1 ] [ 2 ] if").
			expectErr(vmErr(ErrTypeMismatch)),
	}.run(t)
}

func TestQuotations(t *testing.T) {
	execTestCases{
		execTest("bracket quotation applies").do("1 [ 2 * ] apply").expectStack("2"),
		execTest("brace quotation applies").do("3 { 2 * } apply").expectStack("6"),
		execTest("nested quotations").
			do("[ [ 7 ] apply 1 + ] apply").
			expectStack("8"),
		execTest("quotation is a value").
			do("[ 1 ] drop 2").
			expectStack("2"),
		execTest("unmatched close brace").
			do("}").
			expectErr(&CompilerError{Kind: ErrUnmatchedBrace}),
		execTest("unclosed brace").
			do("{ 1").
			expectErr(&CompilerError{Kind: ErrUnmatchedBrace}),
	}.run(t)
}

func TestColonDefinitions(t *testing.T) {
	execTestCases{
		execTest("define and call").do(": double 2 * ;  5 double").expectStack("10"),
		execTest("definition persists across inputs").
			do(": triple 3 * ;", "4 triple").
			expectStack("12"),
		execTest("redefinition shadows").
			do(": x 1 ;", ": x 2 ;", "x").
			expectStack("2"),
		execTest("recursion").
			do(": fact dup 1 == [ drop 1 ] [ dup 1 - fact * ] if ;  5 fact").
			expectStack("120"),
		execTest("definitions may use earlier definitions").
			do(": sq dup * ;  : quad sq sq ;  2 quad").
			expectStack("16"),
		execTest("stack-effect comments are ignored").
			do("1 ( a -- b ) 2").
			expectStack("1", "2"),
	}.run(t)
}

func TestLoop(t *testing.T) {
	execTestCases{
		execTest("break exits the loop").do("1 [ break ] loop 2").expectStack("1", "2"),
		execTest("loop body runs before break").
			do("[ 5 break ] loop").
			expectStack("5"),
		execTest("stack overflow stops a runaway loop").
			do("1 [ dup ] loop").
			expectErr(vmErr(ErrStackOverflow)),
		execTest("break outside a quotation is rejected").
			do("break").
			expectErr(&CompilerError{Kind: ErrBreakOutsideLoop}),
		execTest("continue outside a quotation is rejected").
			do("continue").
			expectErr(&CompilerError{Kind: ErrBreakOutsideLoop}),
		execTest("unclaimed break placeholder fails at run time").
			do("[ break ] apply").
			expectErr(vmErr(ErrInvalidAddress)),
	}.run(t)
}

func TestUserMacros(t *testing.T) {
	execTestCases{
		execTest("macro appends to the accumulator").
			do(`uses: std/_vectors ;  MACRO: four \ 4 swap dup rot swap push! ;  1 four +`).
			expectStack("5"),
		execTest("macro visible on later inputs").
			do(`uses: std/_vectors ;  MACRO: four \ 4 swap dup rot swap push! ;`, "four four *").
			expectStack("16"),
	}.run(t)
}

func TestHaltAndRecovery(t *testing.T) {
	execTestCases{
		execTest("stop halts cleanly").do("1 2 stop 3").expectStack("1", "2"),
		execTest("bye surfaces ErrBye").do("7 bye").expectErr(ErrBye),
		execTest("data stack survives an error").
			do("2 3 +", "7 1 0 /").
			expectErr(vmErr(ErrDivisionByZero)).
			expectStack("5", "7"),
		execTest("deferred word stays a literal").
			do("4 no-such-word").
			expectStack("4", "no-such-word"),
	}.run(t)
}

func TestStringsModule(t *testing.T) {
	execTestCases{
		execTest("concat").
			do(`uses: std/strings ;  "hello" "world" concat`).
			expectStack(`"helloworld"`),
		execTest("to string").
			do("uses: std/strings ;  42 >string").
			expectStack(`"42"`),
		execTest("to string matches the display form").
			do(`uses: std/strings ;  42 >string "42" ==`).
			expectStack("#t"),
		execTest("utf8 round trip").
			do(`uses: std/strings ;  "héllo" >utf8 utf8>string`).
			expectStack(`"héllo"`),
		execTest("length is in runes").
			do(`uses: std/strings ;  "héllo" length`).
			expectStack("5"),
		execTest("case and trim").
			do(`uses: std/strings ;  "  Hi " strip-start strip-end >lowercase`).
			expectStack(`"hi"`),
		execTest("split-at").
			do(`uses: std/strings ;  "abcdef" 2 split-at`).
			expectStack(`"ab"`, `"cdef"`),
		execTest("index-of?").
			do(`uses: std/strings ;  "ll" "hello" index-of?`).
			expectStack("2"),
		execTest("missing index is false").
			do(`uses: std/strings ;  "zz" "hello" index-of?`).
			expectStack("#f"),
	}.run(t)
}

func TestVectorsModule(t *testing.T) {
	execTestCases{
		execTest("build and display").
			do("uses: std/_vectors ;  <vector> 1 over push! 2 over push!").
			expectStack("{ 1 2 }"),
		execTest("pop!").
			do("uses: std/_vectors ;  <vector> 9 over push! dup pop!").
			expectStack("{ }", "9"),
		execTest("pop! of empty fails").
			do("uses: std/_vectors ;  <vector> pop!").
			expectErr(vmErr(ErrEmptyList)),
		execTest("nth and set-nth!").
			do("uses: std/_vectors ;  <vector> 1 over push! 2 over push!",
				"7 over 0 set-nth!  dup 0 nth").
			expectStack("{ 7 2 }", "7"),
		execTest("in?").
			do("uses: std/_vectors ;  <vector> 5 over push!  5 swap in?").
			expectStack("#t"),
		execTest("sort!").
			do("uses: std/_vectors ;  <vector> 3 over push! 1 over push! 2 over push! dup sort!").
			expectStack("{ 1 2 3 }"),
		execTest("join").
			do(`uses: std/_vectors ;  <vector> 1 over push! 2 over push! "-" join`).
			expectStack(`"1-2"`),
		execTest("aliases share mutation").
			do("uses: std/_vectors ;  <vector> dup 42 swap push!").
			expectStack("{ 42 }"),
	}.run(t)
}

func TestHashMapsModule(t *testing.T) {
	execTestCases{
		execTest("set and get").
			do(`uses: std/_hashmaps ;  <hashmap> 42 over "answer" swap set!  "answer" swap get`).
			expectStack("42"),
		execTest("missing key is false").
			do(`uses: std/_hashmaps ;  <hashmap> "nope" swap get`).
			expectStack("#f"),
		execTest("length and remove!").
			do(`uses: std/_hashmaps ;  <hashmap> 1 over "a" swap set!  dup "a" swap remove!  length`).
			expectStack("0"),
		execTest("display sorts pairs by key").
			do(`uses: std/_hashmaps ;  <hashmap> 2 over "b" swap set!  1 over "a" swap set!`).
			expectStack(`H{ { "a" 1 } { "b" 2 } }`),
		execTest("float keys are unfreezable").
			do("uses: std/_hashmaps ;  <hashmap> 5 over 1.5 swap set!").
			expectErr(vmErr(ErrUnfreezableValue)),
	}.run(t)
}

func TestIOModule(t *testing.T) {
	execTestCases{
		execTest("println and dot").
			do(`uses: std/io ;  "hi" println 42 .`).
			expectOutput("hi\n42\n").
			expectStack(),
		execTest("dot-stack leaves the stack alone").
			do("uses: std/io ;  1 2 .s").
			expectOutput("1\n2\n").
			expectStack("1", "2"),
		execTest("strings print escaped by dot").
			do(`uses: std/io ;  "a\"b" .`).
			expectOutput("\"a\\\"b\"\n").
			expectStack(),
	}.run(t)
}

func TestPredeclaredWords(t *testing.T) {
	execTestCases{
		execTest("calling an undefined predeclared word fails").
			do(`uses: std/_internals ;  "ghost" <predeclare-function>`, "ghost").
			expectErr(vmErr(ErrInvalidWordCall)),
	}.run(t)
}

func TestScenarioSuite(t *testing.T) {
	// the end-to-end scenarios from the language overview
	execTestCases{
		execTest("addition").do("2 3 +").expectStack("5"),
		execTest("dip").do("1 [ 2 ] dip").expectStack("2", "1"),
		execTest("if true").do("#t [ 13 ] [ 42 ] if").expectStack("13"),
		execTest("if false").do("#f [ 13 ] [ 42 ] if").expectStack("42"),
		execTest("3drop").do("1 2 3 4 3drop").expectStack("1"),
		execTest("concat").
			do(`uses: std/strings ;  "hello" "world" concat`).
			expectStack(`"helloworld"`),
		execTest("colon definition").do(": double 2 * ;  5 double").expectStack("10"),
	}.run(t)
}
