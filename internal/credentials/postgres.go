package credentials

import (
	"context"

	"studio/internal/infra"
	"studio/internal/sqlinline"
)

// PostgresSlot stores the value as one row of integration_tokens.
type PostgresSlot struct {
	sql infra.SQLExecutor
}

func NewPostgresSlot(sql infra.SQLExecutor) *PostgresSlot {
	return &PostgresSlot{sql: sql}
}

// EnsureSchema creates the backing table when it does not exist yet.
func (p *PostgresSlot) EnsureSchema(ctx context.Context) error {
	_, err := p.sql.Exec(ctx, sqlinline.QCreateIntegrationTokens)
	return err
}

func (p *PostgresSlot) Load(ctx context.Context) (string, bool, error) {
	row := p.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, SlotKey)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return token, true, nil
}

func (p *PostgresSlot) Save(ctx context.Context, value string) error {
	_, err := p.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, SlotKey, value)
	return err
}

func (p *PostgresSlot) Delete(ctx context.Context) error {
	_, err := p.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, SlotKey)
	return err
}
