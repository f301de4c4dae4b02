package engine

import "testing"

func TestValidator_Validate(t *testing.T) {
	tests := []struct {
		name string
		code string
		want Validation
	}{
		{name: "expression", code: "1 + 2", want: Complete},
		{name: "statement", code: "var x = 5;", want: Complete},
		{name: "open brace", code: "function f() {", want: Incomplete},
		{name: "open paren", code: "foo(1,", want: Incomplete},
		{name: "dangling operator", code: "1 +", want: Incomplete},
		{name: "wrong closer", code: "foo(]", want: Mismatch},
		{name: "stray closer", code: "}", want: Mismatch},
		{name: "brackets in string", code: `var s = "(((";`, want: Complete},
		{name: "brackets in comment", code: "1 // {{{", want: Complete},
		{name: "open block comment", code: "/* still going", want: Incomplete},
		{name: "open template", code: "`line one", want: Incomplete},
		{name: "syntax error", code: "var = 3", want: Mismatch},
		{name: "directive", code: "%display latex", want: Complete},
		{name: "multi line", code: "if (x) {\n  y();\n}", want: Complete},
		{name: "regex with open paren", code: `/\(/.test("(")`, want: Complete},
		{name: "regex with close paren", code: `/[)]/.test(")")`, want: Complete},
		{name: "regex then open call", code: `/a/.test(`, want: Incomplete},
		{name: "directive then code", code: "%display latex\n2 + 2", want: Complete},
		{name: "directive then open brace", code: "%display latex\nfunction f() {", want: Incomplete},
		{name: "division", code: "var a = 6 / 3 / (1)", want: Complete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			if got := v.Validate(tt.code); got != tt.want {
				t.Errorf("Validate(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestValidator_AccumulatesUntilReset(t *testing.T) {
	v := NewValidator()

	if got := v.Validate("function f() {"); got != Incomplete {
		t.Fatalf("first line = %v, want incomplete", got)
	}
	if got := v.Validate("}"); got != Complete {
		t.Errorf("continuation = %v, want complete", got)
	}

	// Without a reset the previous input leaks into the next verdict
	v.Reset()
	v.Validate("foo(")
	if got := v.Validate("1"); got != Incomplete {
		t.Errorf("leaked state = %v, want incomplete", got)
	}

	v.Reset()
	if got := v.Validate("1"); got != Complete {
		t.Errorf("after reset = %v, want complete", got)
	}
}
