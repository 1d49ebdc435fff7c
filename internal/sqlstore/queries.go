package sqlstore

// Queries use ? placeholders and go through Dialect.Rebind.
const (
	queryGet = `SELECT fields FROM records WHERE kind = ? AND record_id = ?`

	queryList = `SELECT fields FROM records WHERE kind = ? ORDER BY created_at, record_id`

	queryLookup = `SELECT kind, fields, created_at FROM records WHERE record_id = ?`

	queryInsert = `INSERT INTO records (record_id, kind, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`

	queryImport = queryInsert + ` ON CONFLICT (record_id) DO NOTHING`

	queryReplace = `UPDATE records SET fields = ?, updated_at = ? WHERE record_id = ?`

	queryDelete = `DELETE FROM records WHERE kind = ? AND record_id = ?`
)
