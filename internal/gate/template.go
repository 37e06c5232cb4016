package gate

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// defaultParamPattern はカスタムパターンを持たないパラメータが一致する文字列。
const defaultParamPattern = `[^/]+?`

// Params はパステンプレートに一致したパスから取り出したパラメータ。
// 名前付きパラメータは名前で、無名のパラメータ（"*" や "(\\d+)"）は
// 出現順の番号（"0", "1", ...）で格納される。
type Params map[string]string

// Get はパラメータを取得する。存在しない場合は空文字列を返す。
func (p Params) Get(name string) string {
	return p[name]
}

// Template はコンパイル済みのパステンプレート。
//
// 以下の記法をサポートする。
//
//	/users/:id          名前付きパラメータ
//	/users/:id?         省略可能なパラメータ
//	/files/:path+       1個以上のセグメント
//	/files/:path*       0個以上のセグメント
//	/users/:id(\d+)     カスタムパターン
//	/assets/*           ワイルドカード
//
// 大文字小文字は区別せず、末尾のスラッシュ1つは無視する。
type Template struct {
	// raw はコンパイル前のテンプレート文字列。
	raw string
	// re はテンプレートから生成した正規表現。
	re *regexp.Regexp
	// names はキャプチャグループの順に並んだパラメータ名。
	names []string
}

// templateToken はテンプレートを分解した要素。literal か param のいずれか。
type templateToken struct {
	literal  string
	param    bool
	name     string
	prefix   string
	pattern  string
	optional bool
	repeat   bool
}

// CompileTemplate はパステンプレートをコンパイルする。
// 不正なテンプレートは起動時の設定エラーとして扱うため、エラーを返す。
func CompileTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		return nil, errors.New("パステンプレートが空です")
	}
	if !strings.HasPrefix(tpl, "/") {
		return nil, fmt.Errorf("パステンプレートは / で始まる必要があります: %q", tpl)
	}

	tokens, err := parseTemplate(tpl)
	if err != nil {
		return nil, err
	}

	var (
		b     strings.Builder
		names []string
	)
	b.WriteString("(?i)^")
	for i, tok := range tokens {
		if !tok.param {
			lit := tok.literal
			if i == len(tokens)-1 {
				lit = strings.TrimSuffix(lit, "/")
			}
			b.WriteString(regexp.QuoteMeta(lit))
			continue
		}
		names = append(names, tok.name)
		b.WriteString(tok.regexp())
	}
	b.WriteString("/?$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("パステンプレート %q の正規表現が不正です: %w", tpl, err)
	}
	if re.NumSubexp() != len(names) {
		return nil, fmt.Errorf("パステンプレート %q のカスタムパターンにキャプチャグループは使用できません", tpl)
	}

	return &Template{raw: tpl, re: re, names: names}, nil
}

// Match はパスがテンプレートに一致するかを判定し、一致した場合はパラメータを返す。
func (t *Template) Match(path string) (Params, bool) {
	m := t.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	params := make(Params, len(t.names))
	for i, name := range t.names {
		v := m[i+1]
		if v == "" {
			continue
		}
		if decoded, err := url.PathUnescape(v); err == nil {
			v = decoded
		}
		params[name] = v
	}
	return params, true
}

// MatchString はパスがテンプレートに一致するかだけを判定する。
func (t *Template) MatchString(path string) bool {
	return t.re.MatchString(path)
}

// String はコンパイル前のテンプレート文字列を返す。
func (t *Template) String() string {
	return t.raw
}

// regexp はパラメータ要素を正規表現の断片に変換する。
func (tok templateToken) regexp() string {
	capture := "(?:" + tok.pattern + ")"
	if tok.repeat {
		delim := tok.prefix
		if delim == "" {
			delim = "/"
		}
		capture += "(?:" + regexp.QuoteMeta(delim) + "(?:" + tok.pattern + "))*"
	}
	group := "(" + capture + ")"
	prefix := regexp.QuoteMeta(tok.prefix)

	if !tok.optional {
		return prefix + group
	}
	if tok.prefix == "" {
		return group + "?"
	}
	return "(?:" + prefix + group + ")?"
}

// parseTemplate はテンプレート文字列を要素に分解する。
func parseTemplate(tpl string) ([]templateToken, error) {
	var (
		tokens []templateToken
		lit    strings.Builder
		seen   = make(map[string]bool)
		index  int
	)

	flush := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, templateToken{literal: lit.String()})
			lit.Reset()
		}
	}
	// パラメータ直前の "/" または "." はパラメータの接頭辞として扱う。
	takePrefix := func() string {
		s := lit.String()
		n := len(s)
		if n == 0 || (s[n-1] != '/' && s[n-1] != '.') {
			return ""
		}
		lit.Reset()
		lit.WriteString(s[:n-1])
		return s[n-1:]
	}

	for i := 0; i < len(tpl); {
		ch := tpl[i]
		switch ch {
		case '\\':
			if i+1 >= len(tpl) {
				return nil, fmt.Errorf("パステンプレート %q の末尾にエスケープ文字があります", tpl)
			}
			lit.WriteByte(tpl[i+1])
			i += 2

		case ':', '(', '*':
			prefix := takePrefix()
			flush()

			tok := templateToken{param: true, prefix: prefix}
			j := i
			if ch == ':' {
				j++
				start := j
				for j < len(tpl) && isParamNameByte(tpl[j]) {
					j++
				}
				if j == start {
					return nil, fmt.Errorf("パステンプレート %q のパラメータ名が空です", tpl)
				}
				tok.name = tpl[start:j]
			}

			if ch == '*' {
				tok.pattern = ".*"
				j++
			} else if j < len(tpl) && tpl[j] == '(' {
				end, err := closingParen(tpl, j)
				if err != nil {
					return nil, err
				}
				tok.pattern = tpl[j+1 : end]
				if tok.pattern == "" {
					return nil, fmt.Errorf("パステンプレート %q のカスタムパターンが空です", tpl)
				}
				j = end + 1
			}

			if ch != '*' && j < len(tpl) {
				switch tpl[j] {
				case '?':
					tok.optional = true
					j++
				case '*':
					tok.optional, tok.repeat = true, true
					j++
				case '+':
					tok.repeat = true
					j++
				}
			}

			if tok.pattern == "" {
				tok.pattern = defaultParamPattern
			}
			if tok.name == "" {
				tok.name = strconv.Itoa(index)
				index++
			}
			if seen[tok.name] {
				return nil, fmt.Errorf("パステンプレート %q のパラメータ名 %q が重複しています", tpl, tok.name)
			}
			seen[tok.name] = true

			tokens = append(tokens, tok)
			i = j

		default:
			lit.WriteByte(ch)
			i++
		}
	}
	flush()

	return tokens, nil
}

// closingParen はopenの位置にある "(" に対応する ")" の位置を返す。
func closingParen(s string, open int) (int, error) {
	depth := 0
	for k := open; k < len(s); k++ {
		switch s[k] {
		case '\\':
			k++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return k, nil
			}
		}
	}
	return 0, fmt.Errorf("パステンプレート %q の括弧が閉じられていません", s)
}

func isParamNameByte(c byte) bool {
	return c == '_' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}
