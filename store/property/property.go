package property

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pandodao/safe-pay/core"
	"github.com/pandodao/safe-pay/store"
	"github.com/tsenart/nap"
)

type propertyStore struct {
	db *nap.DB
}

func New(db *nap.DB) core.PropertyStore {
	return &propertyStore{db: db}
}

func (s *propertyStore) Get(ctx context.Context, key string, value any) error {
	stmt, args := sq.Select("`value`").From("properties").Where("`key` = ?", key).MustSql()

	var raw []byte
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&raw); err != nil {
		if store.IsErrNotFound(err) {
			return nil
		}

		return err
	}

	return json.Unmarshal(raw, value)
}

func (s *propertyStore) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal property %s: %w", key, err)
	}

	stmt, args := sq.Update("properties").
		Set("`value`", raw).
		Set("`version`", sq.Expr("`version` + 1")).
		Where("`key` = ?", key).
		MustSql()
	r, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update property %s: %w", key, err)
	}

	if n, err := r.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		return nil
	}

	stmt, args = sq.Insert("properties").Columns("`key`", "`value`").Values(key, raw).MustSql()
	_, err = s.db.ExecContext(ctx, stmt, args...)
	return err
}
