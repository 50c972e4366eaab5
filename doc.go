/*
Package sqlrecord is a small Active Record layer over database/sql.

It offers a fluent query builder that renders parameterized SQL, model
structs with dirty tracking and mass-assignment protection, and helpers
for the usual relationships between models.

# Connecting

A [DB] is built from a [Config]. The handle is opened lazily on first use
and shared by every query run through the DB:

	cfg := sqlrecord.DefaultConfig()
	cfg.Driver = "sqlite3"
	cfg.Database = "app.db"
	db := sqlrecord.NewDB(cfg)
	defer db.Reset()

Configuration can also come from a map ([ConfigFromMap]) or from a
KEY=VALUE file and the DB_* environment variables ([ConfigFromEnv]).

# Building queries

Builders are mutable and chainable. Values are always bound, never written
into the SQL text:

	rows, err := db.Table("users").
		Where("status", "active").
		Where("age", ">", 18).
		OrderBy("name", "asc").
		Limit(10).
		Get(ctx)

Statements are written with "?" placeholders and rebound for the target
database, so the same code runs on MySQL, SQLite and PostgreSQL.

# Models

A model is a struct embedding [Record] whose columns are tagged with the
`db` key, plus a Schema method:

	type User struct {
		sqlrecord.Record
		ID    int64  `db:"id"`
		Name  string `db:"name"`
		Email string `db:"email"`
	}

	func (User) Schema() sqlrecord.Schema {
		return sqlrecord.Schema{Name: "User", Fillable: []string{"name", "email"}}
	}

A [Repo] runs the lifecycle operations:

	users := sqlrecord.NewRepo[User](db)
	u, err := users.Create(ctx, sqlrecord.M{"name": "Fred", "email": "fred@example.com"})
	u.Name = "Frederick"
	_, err = users.Save(ctx, u) // UPDATE users SET name = ? WHERE id = ?

Only the columns changed since the model was loaded or saved are written.
Lookups that find nothing return nil without an error.

# Relationships

[BelongsTo], [HasMany], [HasOne] and [BelongsToMany] run one query per
call. [Lazy] caches the result on the model. Models implementing
[EagerLoader] can be loaded together with their relations in one query per
relation using [Query.With].
*/
package sqlrecord
