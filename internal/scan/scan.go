// Package scan extracts require call sites from Lua and Luau sources
// without executing them.
package scan

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// Require is one require("...") call with a string literal argument.
type Require struct {
	Path string
	// Line and Col are 1-based and point at the start of the call.
	Line int
	Col  int
}

// Requires parses src as lang and returns its require calls in source
// order. Calls whose argument is not a string literal are skipped.
func Requires(ctx context.Context, src []byte, lang string) ([]Require, error) {
	grammar, ok := ParserForLanguage(lang)
	if !ok {
		return nil, fmt.Errorf("scan: unsupported language %q", lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("scan: tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	var out []Require
	walk(tree.RootNode(), func(n *sitter.Node) {
		if req, ok := requireCall(n, src); ok {
			out = append(out, req)
		}
	})
	return out, nil
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	visit(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), visit)
	}
}

func requireCall(n *sitter.Node, src []byte) (Require, bool) {
	if n.Type() != "function_call" {
		return Require{}, false
	}
	// Method calls keep the receiver in prefix, so obj:require(...) is
	// rejected here too.
	prefix := n.ChildByFieldName("prefix")
	if prefix == nil || prefix.Type() != "identifier" || prefix.Content(src) != "require" {
		return Require{}, false
	}
	args := n.ChildByFieldName("args")
	if args == nil {
		return Require{}, false
	}
	lit := stringArgument(args)
	if lit == nil {
		return Require{}, false
	}
	path, ok := unquote(lit.Content(src))
	if !ok {
		return Require{}, false
	}
	start := n.StartPoint()
	return Require{Path: path, Line: int(start.Row) + 1, Col: int(start.Column) + 1}, true
}

// stringArgument returns the literal passed to a call, either as the first
// parenthesized argument or as the bare string of require "x".
func stringArgument(args *sitter.Node) *sitter.Node {
	switch args.Type() {
	case "string_argument":
		return args
	case "function_arguments":
		if args.NamedChildCount() == 0 {
			return nil
		}
		if first := args.NamedChild(0); first.Type() == "string" {
			return first
		}
	}
	return nil
}

// unquote decodes a Lua short or long string literal. Literals with an
// escape Lua does not define are rejected.
func unquote(lit string) (string, bool) {
	if len(lit) < 2 {
		return "", false
	}
	switch q := lit[0]; q {
	case '"', '\'':
		if lit[len(lit)-1] != q {
			return "", false
		}
		return unescape(lit[1 : len(lit)-1])
	case '[':
		level := strings.IndexByte(lit[1:], '[')
		if level < 0 || strings.Trim(lit[1:1+level], "=") != "" {
			return "", false
		}
		closing := "]" + strings.Repeat("=", level) + "]"
		body := lit[2+level:]
		if !strings.HasSuffix(body, closing) {
			return "", false
		}
		body = strings.TrimSuffix(body, closing)
		// A newline directly after the opening bracket is not part of the string.
		body = strings.TrimPrefix(body, "\n")
		return body, true
	}
	return "", false
}

var simpleEscapes = map[byte]byte{
	'a': '\a', 'b': '\b', 'f': '\f', 'n': '\n', 'r': '\r', 't': '\t', 'v': '\v',
	'\\': '\\', '"': '"', '\'': '\'', '\n': '\n',
}

// unescape decodes the body of a short string.
func unescape(s string) (string, bool) {
	if !strings.Contains(s, `\`) {
		return s, true
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", false
		}
		c = s[i]
		if r, ok := simpleEscapes[c]; ok {
			b.WriteByte(r)
			continue
		}
		switch {
		case c == 'z':
			for i+1 < len(s) && isSpace(s[i+1]) {
				i++
			}
		case c == 'x':
			if i+2 >= len(s) {
				return "", false
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", false
			}
			b.WriteByte(byte(v))
			i += 2
		case isDigit(c):
			j := i
			for j < len(s) && j < i+3 && isDigit(s[j]) {
				j++
			}
			v, err := strconv.ParseUint(s[i:j], 10, 16)
			if err != nil || v > 255 {
				return "", false
			}
			b.WriteByte(byte(v))
			i = j - 1
		case c == 'u':
			end := strings.IndexByte(s[i:], '}')
			if i+1 >= len(s) || s[i+1] != '{' || end < 3 {
				return "", false
			}
			v, err := strconv.ParseUint(s[i+2:i+end], 16, 32)
			if err != nil || v > utf8.MaxRune {
				return "", false
			}
			b.WriteRune(rune(v))
			i += end
		default:
			return "", false
		}
	}
	return b.String(), true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
