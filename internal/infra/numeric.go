package infra

import (
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
)

// NumericToInt64 converts a pgtype.Numeric read from a numeric(15,0) money
// column into int64 minor units. Returns an error if the value is NULL, or
// overflows int64.
func NumericToInt64(n pgtype.Numeric) (int64, error) {
	if !n.Valid {
		return 0, fmt.Errorf("numeric value is NULL")
	}

	// pgtype.Numeric stores value as Int * 10^Exp.
	bi := new(big.Int).Set(n.Int)

	if n.Exp > 0 {
		multiplier := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil)
		bi.Mul(bi, multiplier)
	} else if n.Exp < 0 {
		// numeric(15,0) columns never carry fractional digits, but a manual
		// edit might; truncate rather than fail.
		divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-n.Exp)), nil)
		bi.Div(bi, divisor)
	}

	if !bi.IsInt64() {
		return 0, fmt.Errorf("numeric value %s overflows int64", bi.String())
	}

	return bi.Int64(), nil
}

// Int64ToNumeric converts int64 minor units to pgtype.Numeric for writing to
// a numeric(15,0) column.
func Int64ToNumeric(v int64) pgtype.Numeric {
	return pgtype.Numeric{
		Int:              big.NewInt(v),
		Exp:              0,
		NaN:              false,
		InfinityModifier: pgtype.Finite,
		Valid:            true,
	}
}
