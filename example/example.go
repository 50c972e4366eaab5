// Command example runs the blog models against an in-memory SQLite
// database and prints what it finds. Set SQLRECORD_LOG=1 to see every
// statement.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/canonical/sqlrecord"
	"github.com/canonical/sqlrecord/models"
)

const createTables = `
CREATE TABLE users (id integer PRIMARY KEY AUTOINCREMENT, name text, email text, password text, status text, age integer, created_at datetime, updated_at datetime);
CREATE TABLE categories (id integer PRIMARY KEY AUTOINCREMENT, name text, slug text, created_at datetime, updated_at datetime);
CREATE TABLE posts (id integer PRIMARY KEY AUTOINCREMENT, user_id integer, category_id integer, title text, content text, status text, created_at datetime, updated_at datetime);
CREATE TABLE comments (id integer PRIMARY KEY AUTOINCREMENT, user_id integer, post_id integer, content text, created_at datetime, updated_at datetime);
CREATE TABLE category_user (user_id integer, category_id integer);
`

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := sqlrecord.ConfigFromMap(map[string]any{
		"driver":   "sqlite3",
		"database": ":memory:",
		"options":  map[string]string{"_foreign_keys": "1"},
	})
	if err != nil {
		return err
	}
	if os.Getenv("SQLRECORD_LOG") != "" {
		cfg.Logger = log.New(os.Stderr, "sqlrecord: ", 0)
	}
	db := sqlrecord.NewDB(cfg)
	defer db.Reset()

	if _, err := sqlrecord.NewBuilder(db).Raw(ctx, createTables); err != nil {
		return err
	}

	users := sqlrecord.NewRepo[models.User](db)
	ali, err := users.Create(ctx, sqlrecord.M{"name": "Ali", "email": "ali@example.com", "status": "active", "age": 31})
	if err != nil {
		return err
	}
	zeynep, err := users.Create(ctx, sqlrecord.M{"name": "Zeynep", "email": "zeynep@example.com", "status": "active", "age": 27})
	if err != nil {
		return err
	}

	categories := sqlrecord.NewRepo[models.Category](db)
	tech, err := categories.Create(ctx, sqlrecord.M{"name": "Technology", "slug": "technology"})
	if err != nil {
		return err
	}
	for _, follower := range []*models.User{ali, zeynep} {
		if _, err := db.Table("category_user").Insert(ctx, sqlrecord.M{"user_id": follower.ID, "category_id": tech.ID}); err != nil {
			return err
		}
	}

	// Writes within a transaction use the same repositories.
	tx, err := db.Begin(ctx, nil)
	if err != nil {
		return err
	}
	posts := sqlrecord.NewRepo[models.Post](tx)
	for _, title := range []string{"Generics in practice", "Working with database/sql"} {
		if _, err := posts.Create(ctx, sqlrecord.M{"user_id": ali.ID, "category_id": tech.ID, "title": title, "status": "published"}); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	zeynep.Age = 28
	if _, err := users.Save(ctx, zeynep); err != nil {
		return err
	}

	all, err := users.With("posts", "categories").OrderBy("name", "asc").Get(ctx)
	if err != nil {
		return err
	}
	for _, u := range all {
		userPosts, err := u.Posts(ctx, db)
		if err != nil {
			return err
		}
		followed, err := u.Categories(ctx, db)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%d) wrote %d posts and follows %d categories\n", u.Name, u.Age, len(userPosts), len(followed))
	}

	first, err := sqlrecord.NewRepo[models.Post](db).With("user").First(ctx)
	if err != nil {
		return err
	}
	data, err := sqlrecord.ToJSON(first)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
