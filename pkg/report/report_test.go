// Copyright 2025 textfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package report

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   Crash
	}{
		{
			name:   "plain exception",
			stderr: "ERR:Traceback...\nValueError: bad\n",
			want: Crash{
				Type:      "ValueError",
				Message:   "bad",
				File:      "unknown",
				Line:      -1,
				Traceback: "Traceback...\nValueError: bad",
			},
		},
		{
			name: "full traceback",
			stderr: "ERR:Traceback (most recent call last):\n" +
				"  File \"/target/harness.py\", line 10, in <module>\n" +
				"    decode(data)\n" +
				"  File \"/target/decoder.py\", line 42, in decode\n" +
				"    raise KeyError(token)\n" +
				"KeyError: 'foo'\n",
			want: Crash{
				Type:    "KeyError",
				Message: "'foo'",
				File:    "/target/decoder.py",
				Line:    42,
			},
		},
		{
			name:   "no message",
			stderr: "ERR:StopIteration\n",
			want: Crash{
				Type:      "StopIteration",
				Message:   "",
				File:      "unknown",
				Line:      -1,
				Traceback: "StopIteration",
			},
		},
		{
			name:   "message with colons",
			stderr: "ERR:RuntimeError: a: b: c\n",
			want: Crash{
				Type:      "RuntimeError",
				Message:   "a: b: c",
				File:      "unknown",
				Line:      -1,
				Traceback: "RuntimeError: a: b: c",
			},
		},
		{
			name:   "no marker",
			stderr: "SyntaxError: oops",
			want: Crash{
				Type:      "SyntaxError",
				Message:   "oops",
				File:      "unknown",
				Line:      -1,
				Traceback: "SyntaxError: oops",
			},
		},
		{
			name:   "empty input degrades to placeholders",
			stderr: "",
			want: Crash{
				File: "unknown",
				Line: -1,
			},
		},
		{
			name:   "marker only",
			stderr: "ERR:",
			want: Crash{
				File: "unknown",
				Line: -1,
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Parse(test.stderr)
			// Traceback equality is only asserted where the expectation
			// spells it out.
			if test.want.Traceback == "" && test.want.Type != "" {
				got.Traceback = ""
			}
			if diff := cmp.Diff(&test.want, got); diff != "" {
				t.Fatalf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLastFrameWins(t *testing.T) {
	stderr := "ERR:Traceback (most recent call last):\n" +
		"  File \"a.py\", line 1, in <module>\n" +
		"  File \"b.py\", line 2, in f\n" +
		"TypeError: nope\n"
	got := Parse(stderr)
	if got.File != "b.py" || got.Line != 2 {
		t.Fatalf("want deepest frame b.py:2, got %v:%v", got.File, got.Line)
	}
}

func TestKey(t *testing.T) {
	a := Parse("ERR:  File \"x.py\", line 3, in f\nValueError: one\n")
	b := Parse("ERR:  File \"x.py\", line 3, in f\nValueError: two\n")
	c := Parse("ERR:  File \"x.py\", line 4, in f\nValueError: one\n")
	if a.Key() != b.Key() {
		t.Fatalf("same type/file/line must share a key: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() == c.Key() {
		t.Fatalf("different lines must not share a key: %q", a.Key())
	}
}
