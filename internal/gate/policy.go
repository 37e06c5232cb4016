package gate

import (
	"errors"
	"fmt"
	"regexp"
)

// Rule は認証要否を決定した規則を表す。
type Rule int

const (
	// RuleOutsidePrefix は先頭セグメントが保護プレフィックスに一致しなかったことを表す。
	RuleOutsidePrefix Rule = iota
	// RulePublicEndpoint は保護プレフィックス内だが公開エンドポイントに一致したことを表す。
	RulePublicEndpoint
	// RuleProtected は認証が必要であることを表す。
	RuleProtected
)

// String は規則の名前を返す。
func (r Rule) String() string {
	switch r {
	case RuleOutsidePrefix:
		return "outside-prefix"
	case RulePublicEndpoint:
		return "public-endpoint"
	case RuleProtected:
		return "protected"
	default:
		return fmt.Sprintf("rule(%d)", int(r))
	}
}

// Decision は1つのパスに対する判定結果。
type Decision struct {
	// Path は判定したリクエストパス。
	Path string
	// Top はパスの先頭セグメント（"/" 付き）。
	Top string
	// Rule は判定を決めた規則。
	Rule Rule
	// Pattern は一致した公開エンドポイントのテンプレート。RulePublicEndpoint の場合のみ設定される。
	Pattern string
}

// RequiresAuth は判定結果が認証を要求するかを返す。
func (d Decision) RequiresAuth() bool {
	return d.Rule == RuleProtected
}

// Policy は保護プレフィックスと公開エンドポイントからなる認証ポリシー。
// 起動時に一度だけ生成し、以後は変更しない。
type Policy struct {
	// prefix は保護対象の先頭セグメントを表す正規表現。
	prefix *regexp.Regexp
	// public は保護プレフィックス内でも認証不要なエンドポイント。
	public []*Template
}

// NewPolicy はポリシーを生成する。
// 正規表現やテンプレートが不正な場合はエラーを返す。
func NewPolicy(prefix string, publicAPIs []string) (*Policy, error) {
	if prefix == "" {
		return nil, errors.New("保護プレフィックスの正規表現が空です")
	}
	re, err := regexp.Compile(prefix)
	if err != nil {
		return nil, fmt.Errorf("保護プレフィックスの正規表現 %q が不正です: %w", prefix, err)
	}

	public := make([]*Template, 0, len(publicAPIs))
	for _, api := range publicAPIs {
		t, err := CompileTemplate(api)
		if err != nil {
			return nil, fmt.Errorf("公開エンドポイントの定義が不正です: %w", err)
		}
		public = append(public, t)
	}

	return &Policy{prefix: re, public: public}, nil
}

// Explain はパスに対する判定結果を、決定した規則とともに返す。
func (p *Policy) Explain(path string) Decision {
	d := Decision{Path: path, Top: TopSegment(path)}
	if !p.prefix.MatchString(d.Top) {
		d.Rule = RuleOutsidePrefix
		return d
	}
	for _, t := range p.public {
		if t.MatchString(path) {
			d.Rule = RulePublicEndpoint
			d.Pattern = t.String()
			return d
		}
	}
	d.Rule = RuleProtected
	return d
}

// RequiresAuth はパスへのリクエストに有効な認証情報が必要かを返す。
func (p *Policy) RequiresAuth(path string) bool {
	return p.Explain(path).RequiresAuth()
}

// Bypass はパスへのリクエストが認証なしで通過できるかを返す。
// middleware.JWTAuth にそのまま渡せる形になっている。
func (p *Policy) Bypass(path string) bool {
	return !p.RequiresAuth(path)
}

// Prefix は保護プレフィックスの正規表現を返す。
func (p *Policy) Prefix() string {
	return p.prefix.String()
}

// PublicAPIs は公開エンドポイントのテンプレートを定義順に返す。
func (p *Policy) PublicAPIs() []string {
	out := make([]string, len(p.public))
	for i, t := range p.public {
		out[i] = t.String()
	}
	return out
}
