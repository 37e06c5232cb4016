// Package mock はモックAPIの定義を保存し、リクエストに一致する定義を探す。
package mock

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/mockhub/internal/gate"
)

// MethodAll はすべてのHTTPメソッドに一致するモックのメソッド。
const MethodAll = "ALL"

var (
	// ErrNotFound はモックが存在しない場合のエラー。
	ErrNotFound = errors.New("モックが見つかりません")
	// ErrForbidden は他のユーザーが作成したモックを操作しようとした場合のエラー。
	ErrForbidden = errors.New("このモックを操作する権限がありません")
	// ErrInvalid はモックの定義が不正な場合のエラー。
	ErrInvalid = errors.New("モックの定義が不正です")
)

// allowedMethods はモックに指定できるメソッド。
var allowedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodOptions: {},
	MethodAll:          {},
}

// Mock はモックAPIの定義。
type Mock struct {
	ID          string          `json:"id"`
	Method      string          `json:"method"`
	URL         string          `json:"url"`
	Description string          `json:"description"`
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// HasBody はステータスコードがレスポンスボディを持てるかを返す。
func (m *Mock) HasBody() bool {
	return m.Status != http.StatusNoContent && m.Status != http.StatusNotModified
}

// CreateInput はモック作成時の入力。
type CreateInput struct {
	Method      string          `json:"method"`
	URL         string          `json:"url"`
	Description string          `json:"description"`
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body"`
}

// normalize は入力を検証し、既定値を補う。
func (in *CreateInput) normalize() error {
	in.Method = strings.ToUpper(strings.TrimSpace(in.Method))
	if in.Method == "" {
		in.Method = http.MethodGet
	}
	if _, ok := allowedMethods[in.Method]; !ok {
		return fmt.Errorf("%w: メソッド %q は使用できません", ErrInvalid, in.Method)
	}

	in.URL = strings.TrimSpace(in.URL)
	if _, err := gate.CompileTemplate(in.URL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if in.Status == 0 {
		in.Status = http.StatusOK
	}
	if in.Status < 200 || in.Status > 599 {
		return fmt.Errorf("%w: ステータスコード %d は範囲外です", ErrInvalid, in.Status)
	}

	if len(in.Body) == 0 {
		in.Body = json.RawMessage("{}")
	}
	if !json.Valid(in.Body) {
		return fmt.Errorf("%w: レスポンスボディがJSONではありません", ErrInvalid)
	}
	return nil
}

// Store はmocksテーブルへのアクセスを提供する。
type Store struct {
	db  *sql.DB
	now func() time.Time

	// templates はURLごとのコンパイル済みテンプレート。
	templates sync.Map
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Create はモックを作成する。
func (s *Store) Create(ctx context.Context, createdBy string, in CreateInput) (*Mock, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	m := &Mock{
		ID:          uuid.NewString(),
		Method:      in.Method,
		URL:         in.URL,
		Description: in.Description,
		Status:      in.Status,
		Body:        in.Body,
		CreatedBy:   createdBy,
		CreatedAt:   s.now().UTC().Truncate(time.Second),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mocks (id, method, url, description, status, body, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Method, m.URL, m.Description, m.Status, string(m.Body), m.CreatedBy, m.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("モックの作成に失敗: %w", err)
	}
	return m, nil
}

// List は作成順にすべてのモックを返す。
func (s *Store) List(ctx context.Context) ([]*Mock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, method, url, description, status, body, created_by, created_at
		 FROM mocks ORDER BY created_at, rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("モック一覧の取得に失敗: %w", err)
	}
	defer rows.Close()

	mocks := make([]*Mock, 0)
	for rows.Next() {
		m, err := scanMock(rows)
		if err != nil {
			return nil, err
		}
		mocks = append(mocks, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("モック一覧の読み込みに失敗: %w", err)
	}
	return mocks, nil
}

// Get はIDでモックを取得する。
func (s *Store) Get(ctx context.Context, id string) (*Mock, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, method, url, description, status, body, created_by, created_at
		 FROM mocks WHERE id = ?`, id,
	)
	m, err := scanMock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// Delete はモックを削除する。作成者以外は削除できない。
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.CreatedBy != userID {
		return ErrForbidden
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM mocks WHERE id = ?", id); err != nil {
		return fmt.Errorf("モックの削除に失敗: %w", err)
	}
	// 同じURLのモックが残っていても、次のFindで再コンパイルされる
	s.templates.Delete(m.URL)
	return nil
}

// Find はメソッドとパスに一致する最初のモックを、パラメータとともに返す。
// pathはモック用プレフィックスを除いたパス。
func (s *Store) Find(ctx context.Context, method, path string) (*Mock, gate.Params, error) {
	mocks, err := s.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	method = strings.ToUpper(method)
	for _, m := range mocks {
		if m.Method != MethodAll && m.Method != method {
			continue
		}
		tpl, err := s.template(m.URL)
		if err != nil {
			continue
		}
		if params, ok := tpl.Match(path); ok {
			return m, params, nil
		}
	}
	return nil, nil, ErrNotFound
}

// template はURLのコンパイル済みテンプレートを返す。
func (s *Store) template(url string) (*gate.Template, error) {
	if v, ok := s.templates.Load(url); ok {
		return v.(*gate.Template), nil
	}
	tpl, err := gate.CompileTemplate(url)
	if err != nil {
		return nil, err
	}
	s.templates.Store(url, tpl)
	return tpl, nil
}

// scanner は *sql.Row と *sql.Rows の共通インターフェース。
type scanner interface {
	Scan(dest ...any) error
}

func scanMock(row scanner) (*Mock, error) {
	var (
		m         Mock
		body      string
		createdAt int64
	)
	err := row.Scan(&m.ID, &m.Method, &m.URL, &m.Description, &m.Status, &body, &m.CreatedBy, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("モックの読み込みに失敗: %w", err)
	}
	m.Body = json.RawMessage(body)
	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &m, nil
}
