package services

// SQL for the load pipeline. The table, column and constraint names are the
// schema contract of the classifications table.

const (
	// queryClearClassifications removes every row before the reload.
	queryClearClassifications = `DELETE FROM classifications WHERE true`

	// queryUpsertClassification writes one derived row; a key collision
	// overwrites the class.
	// Parameters: $1 url_scheme, $2 url_host (nullable), $3 url_path, $4 class (nullable)
	queryUpsertClassification = `
		INSERT INTO classifications (url_scheme, url_host, url_path, class)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT classifications_pk
		DO UPDATE SET class = EXCLUDED.class
	`
)
