package sqlkit

import (
	"context"
	"strconv"
)

// BatchUpdate updates one row per record inside a single transaction:
// each record's key field selects the row, the remaining fields become
// the SET clause. Returns the total affected-row count. A record with
// no non-key fields contributes zero rows and is skipped; a record
// missing the key field, or any statement failure, rolls back the
// entire batch.
func (db *DB) BatchUpdate(ctx context.Context, table string, records []Record, keyField string, opts ...Option) (int64, error) {
	if err := validateIdent("table", table); err != nil {
		return 0, err
	}
	if err := validateIdent("column", keyField); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	var total int64
	err := db.Transaction(ctx, func(tx *Tx) error {
		for i, record := range records {
			key, ok := record[keyField]
			if !ok {
				return &Error{
					Code:    CodeValidation,
					Message: "record " + strconv.Itoa(i) + " is missing key field " + keyField,
					Op:      "BatchUpdate",
					Table:   table,
					Column:  keyField,
				}
			}

			fields := make(Record, len(record)-1)
			for col, value := range record {
				if col != keyField {
					fields[col] = value
				}
			}
			if len(fields) == 0 {
				continue
			}

			query, params, err := buildUpdate(table, fields, quoteIdent(keyField)+" = ?", []any{key})
			if err != nil {
				return err
			}

			res, err := tx.ExecContext(ctx, query, params...)
			if err != nil {
				return wrapError(err, "BatchUpdate")
			}
			affected, _ := res.RowsAffected()
			total += affected
		}
		return nil
	}, opts...)
	if err != nil {
		return 0, err
	}

	db.logger.Debug("batch update committed", "records", len(records), "rows_affected", total)
	return total, nil
}
