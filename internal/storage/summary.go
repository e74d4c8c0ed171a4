package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// summaryCodec maps the ordered bullet list onto the dialect's column type
type summaryCodec interface {
	Value(bullets []string) (interface{}, error)
	Scanner(dest *[]string) sql.Scanner
}

// jsonSummary stores bullets as a JSON array in a TEXT column (SQLite)
type jsonSummary struct{}

func (jsonSummary) Value(bullets []string) (interface{}, error) {
	encoded, err := json.Marshal(bullets)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func (jsonSummary) Scanner(dest *[]string) sql.Scanner {
	return jsonBullets{dest: dest}
}

type jsonBullets struct {
	dest *[]string
}

func (b jsonBullets) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported summary type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, b.dest)
}

// arraySummary stores bullets in a native TEXT[] column (PostgreSQL), the
// same shape as a Supabase string[] column.
type arraySummary struct{}

func (arraySummary) Value(bullets []string) (interface{}, error) {
	return bullets, nil
}

func (arraySummary) Scanner(dest *[]string) sql.Scanner {
	return pgtype.NewMap().SQLScanner(dest)
}
