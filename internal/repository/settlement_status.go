package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tablestakes/tracker/internal/domain"
	"github.com/tablestakes/tracker/internal/infra"
)

type settlementStatusRepo struct{}

// NewSettlementStatusRepository returns a pgx-backed SettlementStatusRepository.
func NewSettlementStatusRepository() SettlementStatusRepository {
	return &settlementStatusRepo{}
}

func (r *settlementStatusRepo) List(ctx context.Context, db DBTX) ([]domain.SettlementStatusRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT debtor, creditor, status, amount, updated_at
		FROM settlement_statuses
		ORDER BY debtor, creditor`)
	if err != nil {
		return nil, fmt.Errorf("query settlement statuses: %w", err)
	}
	defer rows.Close()

	var records []domain.SettlementStatusRecord
	for rows.Next() {
		rec, err := scanStatus(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (r *settlementStatusRepo) Upsert(ctx context.Context, db DBTX, rec domain.SettlementStatusRecord) (*domain.SettlementStatusRecord, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO settlement_statuses (debtor, creditor, status, amount, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (debtor, creditor)
		DO UPDATE SET status = EXCLUDED.status, amount = EXCLUDED.amount, updated_at = now()
		RETURNING debtor, creditor, status, amount, updated_at`,
		rec.Debtor, rec.Creditor, string(rec.Status), infra.Int64ToNumeric(rec.Amount))

	stored, err := scanStatus(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("upsert settlement status: %w", err)
	}
	return stored, nil
}

func (r *settlementStatusRepo) Clear(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, `DELETE FROM settlement_statuses`); err != nil {
		return fmt.Errorf("clear settlement statuses: %w", err)
	}
	return nil
}

func scanStatus(scan func(dest ...interface{}) error) (*domain.SettlementStatusRecord, error) {
	var rec domain.SettlementStatusRecord
	var status string
	var amountNum pgtype.Numeric

	if err := scan(&rec.Debtor, &rec.Creditor, &status, &amountNum, &rec.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan settlement status: %w", err)
	}

	rec.Status = domain.SettlementStatus(status)
	amount, err := infra.NumericToInt64(amountNum)
	if err != nil {
		return nil, fmt.Errorf("convert amount: %w", err)
	}
	rec.Amount = amount

	return &rec, nil
}
