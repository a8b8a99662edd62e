package sqlx

import sentinelsql "github.com/kroma-labs/sentinel-sql/sql"

// Option configures the instrumented driver behind a *sqlx.DB.
// It is the same type as the sql package's Option.
type Option = sentinelsql.Option

// Options shared with the sql package.
var (
	WithTracerProvider  = sentinelsql.WithTracerProvider
	WithMeterProvider   = sentinelsql.WithMeterProvider
	WithDBSystem        = sentinelsql.WithDBSystem
	WithDBName          = sentinelsql.WithDBName
	WithInstanceName    = sentinelsql.WithInstanceName
	WithQuerySanitizer  = sentinelsql.WithQuerySanitizer
	WithDisableQuery    = sentinelsql.WithDisableQuery
	WithQueryLogger     = sentinelsql.WithQueryLogger
	WithLogger          = sentinelsql.WithLogger
	WithDisableQueryLog = sentinelsql.WithDisableQueryLog
)
