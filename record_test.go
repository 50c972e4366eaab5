package sqlrecord_test

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/vmihailenco/msgpack/v5"
	. "gopkg.in/check.v1"

	"github.com/canonical/sqlrecord"
)

type RecordSuite struct{}

var _ = Suite(&RecordSuite{})

func (s *RecordSuite) TestSchemaDefaults(c *C) {
	note := Note{}.Schema()
	c.Check(note.TableName(), Equals, "notes")
	c.Check(note.Key(), Equals, "id")
	c.Check(note.ForeignKey(), Equals, "note_id")
	c.Check(note.IsFillable("anything"), Equals, true)

	person := Person{}.Schema()
	c.Check(person.TableName(), Equals, "person")
	c.Check(person.IsFillable("name"), Equals, true)
	c.Check(person.IsFillable("id"), Equals, false)

	c.Check(sqlrecord.PivotTable(person, Team{}.Schema()), Equals, "person_team")
	c.Check(sqlrecord.PivotTable(Team{}.Schema(), person), Equals, "person_team")
}

func (s *RecordSuite) TestNewFiltersFillable(c *C) {
	p, err := sqlrecord.New[Person](sqlrecord.M{
		"id":     99,
		"name":   "Jim",
		"age":    "41",
		"secret": "ignored",
	})
	c.Assert(err, IsNil)
	c.Check(p.ID, Equals, int64(0))
	c.Check(p.Name, Equals, "Jim")
	c.Check(p.Age, Equals, 41)
	c.Check(sqlrecord.IsNew(p), Equals, true)
	c.Check(sqlrecord.IsDirty(p), Equals, false)

	// Direct assignment is not filtered.
	p.ID = 7
	c.Check(sqlrecord.PrimaryKeyValue(p), Equals, int64(7))

	c.Assert(sqlrecord.Fill(p, sqlrecord.M{"email": []byte("jim@example.com"), "id": 8}), IsNil)
	c.Check(p.Email, Equals, "jim@example.com")
	c.Check(p.ID, Equals, int64(7))
	c.Check(sqlrecord.Dirty(p), DeepEquals, sqlrecord.M{"email": "jim@example.com"})
}

func (s *RecordSuite) TestCreateAndFind(c *C) {
	db := openDB(c)
	ctx := context.Background()
	people := sqlrecord.NewRepo[Person](db)

	p, err := people.Create(ctx, sqlrecord.M{"name": "Jim", "age": 41, "email": "jim@example.com", "id": 1})
	c.Assert(err, IsNil)
	c.Check(p.ID, Equals, int64(4))
	c.Check(sqlrecord.IsDirty(p), Equals, false)

	found, err := people.Find(ctx, p.ID)
	c.Assert(err, IsNil)
	c.Assert(found, NotNil)
	c.Check(sqlrecord.Attributes(found), DeepEquals, sqlrecord.Attributes(p))

	c.Check(statements(c), DeepEquals, []string{
		"INSERT INTO person (name, age, email, address_id) VALUES (?, ?, ?, ?)",
		"SELECT * FROM person WHERE id = ? LIMIT 1",
	})

	missing, err := people.Find(ctx, 99)
	c.Assert(err, IsNil)
	c.Check(missing, IsNil)
}

func (s *RecordSuite) TestSaveUpdatesDirtyColumns(c *C) {
	db := openDB(c)
	ctx := context.Background()
	people := sqlrecord.NewRepo[Person](db)

	p, err := people.Find(ctx, 1)
	c.Assert(err, IsNil)
	statements(c)

	p.Name = "Frederick"
	c.Check(sqlrecord.Dirty(p), DeepEquals, sqlrecord.M{"name": "Frederick"})
	c.Check(sqlrecord.Original(p)["name"], Equals, "Fred")

	saved, err := people.Save(ctx, p)
	c.Assert(err, IsNil)
	c.Check(saved, Equals, true)
	c.Check(sqlrecord.IsDirty(p), Equals, false)
	c.Check(statements(c), DeepEquals, []string{"UPDATE person SET name = ? WHERE id = ?"})

	reloaded, err := people.Find(ctx, 1)
	c.Assert(err, IsNil)
	c.Check(reloaded.Name, Equals, "Frederick")
}

func (s *RecordSuite) TestSaveClearsOmitEmptyColumn(c *C) {
	db := openDB(c)
	ctx := context.Background()
	addresses := sqlrecord.NewRepo[Address](db)

	a, err := addresses.Find(ctx, 1)
	c.Assert(err, IsNil)
	c.Check(sqlrecord.Original(a)["district"], Equals, "Happy Land")
	statements(c)

	a.District = ""
	c.Check(sqlrecord.Dirty(a), DeepEquals, sqlrecord.M{"district": ""})
	saved, err := addresses.Save(ctx, a)
	c.Assert(err, IsNil)
	c.Check(saved, Equals, true)
	c.Check(statements(c), DeepEquals, []string{"UPDATE address SET district = ? WHERE id = ?"})
	c.Check(sqlrecord.IsDirty(a), Equals, false)

	reloaded, err := addresses.Find(ctx, 1)
	c.Assert(err, IsNil)
	c.Check(reloaded.District, Equals, "")

	// Setting it again is a change from the now empty snapshot.
	reloaded.District = "Happy Land"
	c.Check(sqlrecord.Dirty(reloaded), DeepEquals, sqlrecord.M{"district": "Happy Land"})
}

func (s *RecordSuite) TestInsertLeavesOmitEmptyColumnsOut(c *C) {
	db := openDB(c)
	ctx := context.Background()

	a, err := sqlrecord.NewRepo[Address](db).Create(ctx, sqlrecord.M{"street": "Mill Lane"})
	c.Assert(err, IsNil)
	c.Check(a.ID, Equals, int64(3))
	c.Check(statements(c), DeepEquals, []string{"INSERT INTO address (street) VALUES (?)"})
}

func (s *RecordSuite) TestSaveCleanModelRunsNothing(c *C) {
	db := openDB(c)
	ctx := context.Background()
	people := sqlrecord.NewRepo[Person](db)

	p, err := people.Find(ctx, 2)
	c.Assert(err, IsNil)
	statements(c)

	saved, err := people.Save(ctx, p)
	c.Assert(err, IsNil)
	c.Check(saved, Equals, true)
	c.Check(statements(c), HasLen, 0)
}

func (s *RecordSuite) TestSaveRefreshesSnapshotWithoutMatch(c *C) {
	db := openDB(c)
	ctx := context.Background()
	people := sqlrecord.NewRepo[Person](db)

	p, err := people.Find(ctx, 3)
	c.Assert(err, IsNil)
	deleted, err := people.Delete(ctx, 3)
	c.Assert(err, IsNil)
	c.Check(deleted, Equals, true)

	p.Age = 41
	saved, err := people.Save(ctx, p)
	c.Assert(err, IsNil)
	c.Check(saved, Equals, false)
	c.Check(sqlrecord.IsDirty(p), Equals, false)
}

type locked struct {
	sqlrecord.Record
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

func (locked) Schema() sqlrecord.Schema {
	return sqlrecord.Schema{Name: "Locked", Table: "person", Fillable: []string{"nothing"}}
}

func (s *RecordSuite) TestSaveWithNothingToInsert(c *C) {
	db := openDB(c)

	l := &locked{Name: "Direct"}
	saved, err := sqlrecord.Save(context.Background(), db, l)
	c.Assert(err, IsNil)
	c.Check(saved, Equals, false)
	c.Check(l.ID, Equals, int64(0))
	c.Check(statements(c), HasLen, 0)
}

func (s *RecordSuite) TestDestroy(c *C) {
	db := openDB(c)
	ctx := context.Background()
	people := sqlrecord.NewRepo[Person](db)

	fresh, err := sqlrecord.New[Person](sqlrecord.M{"name": "Unsaved"})
	c.Assert(err, IsNil)
	destroyed, err := people.Destroy(ctx, fresh)
	c.Assert(err, IsNil)
	c.Check(destroyed, Equals, false)
	c.Check(statements(c), HasLen, 0)

	p, err := people.Find(ctx, 2)
	c.Assert(err, IsNil)
	destroyed, err = people.Destroy(ctx, p)
	c.Assert(err, IsNil)
	c.Check(destroyed, Equals, true)

	gone, err := people.Find(ctx, 2)
	c.Assert(err, IsNil)
	c.Check(gone, IsNil)
}

func (s *RecordSuite) TestRepoOperations(c *C) {
	db := openDB(c)
	ctx := context.Background()
	people := sqlrecord.NewRepo[Person](db)

	all, err := people.All(ctx)
	c.Assert(err, IsNil)
	c.Assert(all, HasLen, 3)
	c.Check(all[0].Name, Equals, "Fred")
	c.Check(*all[0].AddressID, Equals, int64(1))
	c.Check(all[1].AddressID, IsNil)

	n, err := people.Count(ctx)
	c.Assert(err, IsNil)
	c.Check(n, Equals, int64(3))

	exists, err := people.Exists(ctx)
	c.Assert(err, IsNil)
	c.Check(exists, Equals, true)

	first, err := people.First(ctx)
	c.Assert(err, IsNil)
	c.Check(first.ID, Equals, int64(1))

	older, err := people.Where("age", ">", 25).OrderBy("age", "desc").Get(ctx)
	c.Assert(err, IsNil)
	c.Assert(older, HasLen, 2)
	c.Check(older[0].Name, Equals, "Mary")

	// Update is not restricted to fillable columns.
	updated, err := people.Update(ctx, 2, sqlrecord.M{"name": "Marcus", "id": 20})
	c.Assert(err, IsNil)
	c.Check(updated, Equals, true)
	marcus, err := people.Find(ctx, 20)
	c.Assert(err, IsNil)
	c.Check(marcus.Name, Equals, "Marcus")

	updated, err = people.Update(ctx, 99, sqlrecord.M{"name": "Nobody"})
	c.Assert(err, IsNil)
	c.Check(updated, Equals, false)

	deleted, err := people.Delete(ctx, 20)
	c.Assert(err, IsNil)
	c.Check(deleted, Equals, true)
	deleted, err = people.Delete(ctx, 20)
	c.Assert(err, IsNil)
	c.Check(deleted, Equals, false)
}

func (s *RecordSuite) TestRefresh(c *C) {
	db := openDB(c)
	ctx := context.Background()
	people := sqlrecord.NewRepo[Person](db)

	p, err := people.Find(ctx, 1)
	c.Assert(err, IsNil)
	_, err = p.Notes(ctx, db)
	c.Assert(err, IsNil)
	p.Name = "Changed"

	_, err = db.Table("person").Where("id", 1).Update(ctx, sqlrecord.M{"age": 31})
	c.Assert(err, IsNil)

	ok, err := people.Refresh(ctx, p)
	c.Assert(err, IsNil)
	c.Check(ok, Equals, true)
	c.Check(p.Name, Equals, "Fred")
	c.Check(p.Age, Equals, 31)
	c.Check(p.Relation("notes").State, Equals, sqlrecord.NotLoaded)
	c.Check(sqlrecord.IsDirty(p), Equals, false)

	_, err = people.Refresh(ctx, &Person{})
	c.Assert(err, Equals, sqlrecord.ErrNoPrimaryKey)
}

func (s *RecordSuite) TestBelongsTo(c *C) {
	db := openDB(c)
	ctx := context.Background()
	people := sqlrecord.NewRepo[Person](db)

	fred, err := people.Find(ctx, 1)
	c.Assert(err, IsNil)
	statements(c)

	address, err := sqlrecord.BelongsTo[Address](ctx, db, fred)
	c.Assert(err, IsNil)
	c.Assert(address, NotNil)
	c.Check(address.Street, Equals, "Main Street")
	c.Check(statements(c), DeepEquals, []string{"SELECT * FROM address WHERE id = ? LIMIT 1"})

	mark, err := people.Find(ctx, 2)
	c.Assert(err, IsNil)
	statements(c)
	address, err = sqlrecord.BelongsTo[Address](ctx, db, mark)
	c.Assert(err, IsNil)
	c.Check(address, IsNil)
	c.Check(statements(c), HasLen, 0)
}

func (s *RecordSuite) TestHasManyAndHasOne(c *C) {
	db := openDB(c)
	ctx := context.Background()

	fred, err := sqlrecord.NewRepo[Person](db).Find(ctx, 1)
	c.Assert(err, IsNil)
	statements(c)

	notes, err := sqlrecord.HasMany[Note](ctx, db, fred)
	c.Assert(err, IsNil)
	c.Assert(notes, HasLen, 2)
	c.Check(notes[0].Body, Equals, "first")
	c.Check(notes[1].Body, Equals, "second")

	note, err := sqlrecord.HasOne[Note](ctx, db, fred)
	c.Assert(err, IsNil)
	c.Check(note.Body, Equals, "first")

	c.Check(statements(c), DeepEquals, []string{
		"SELECT * FROM notes WHERE person_id = ?",
		"SELECT * FROM notes WHERE person_id = ? LIMIT 1",
	})

	unsaved := &Person{Name: "Unsaved"}
	notes, err = sqlrecord.HasMany[Note](ctx, db, unsaved)
	c.Assert(err, IsNil)
	c.Check(notes, HasLen, 0)
	note, err = sqlrecord.HasOne[Note](ctx, db, unsaved)
	c.Assert(err, IsNil)
	c.Check(note, IsNil)
	c.Check(statements(c), HasLen, 0)
}

func (s *RecordSuite) TestBelongsToMany(c *C) {
	db := openDB(c)
	ctx := context.Background()

	fred, err := sqlrecord.NewRepo[Person](db).Find(ctx, 1)
	c.Assert(err, IsNil)
	statements(c)

	teams, err := sqlrecord.BelongsToMany[Team](ctx, db, fred)
	c.Assert(err, IsNil)
	c.Assert(teams, HasLen, 2)
	c.Check(teams[0].Title, Equals, "engineering")
	c.Check(teams[1].Title, Equals, "hr")
	c.Check(statements(c), DeepEquals, []string{
		"SELECT team.* FROM team INNER JOIN person_team ON team.id = person_team.team_id WHERE person_team.person_id = ?",
	})

	teams, err = sqlrecord.BelongsToMany[Team](ctx, db, fred, "person_team", "person_id", "team_id")
	c.Assert(err, IsNil)
	c.Check(teams, HasLen, 2)

	mary, err := sqlrecord.NewRepo[Person](db).Find(ctx, 3)
	c.Assert(err, IsNil)
	teams, err = sqlrecord.BelongsToMany[Team](ctx, db, mary)
	c.Assert(err, IsNil)
	c.Check(teams, HasLen, 0)
}

func (s *RecordSuite) TestLazyCachesRelation(c *C) {
	db := openDB(c)
	ctx := context.Background()

	fred, err := sqlrecord.NewRepo[Person](db).Find(ctx, 1)
	c.Assert(err, IsNil)
	c.Check(fred.Relation("notes").State, Equals, sqlrecord.NotLoaded)
	statements(c)

	notes, err := fred.Notes(ctx, db)
	c.Assert(err, IsNil)
	c.Check(notes, HasLen, 2)
	again, err := fred.Notes(ctx, db)
	c.Assert(err, IsNil)
	c.Check(again, DeepEquals, notes)
	c.Check(statements(c), HasLen, 1)
	c.Check(fred.Relation("notes").State, Equals, sqlrecord.Loaded)

	fred.ForgetRelation("notes")
	_, err = fred.Notes(ctx, db)
	c.Assert(err, IsNil)
	c.Check(statements(c), HasLen, 1)

	fred.SetRelation("notes", []*Note{})
	notes, err = fred.Notes(ctx, db)
	c.Assert(err, IsNil)
	c.Check(notes, HasLen, 0)
	c.Check(statements(c), HasLen, 0)
}

func (s *RecordSuite) TestEagerLoading(c *C) {
	db := openDB(c)
	ctx := context.Background()

	people, err := sqlrecord.NewRepo[Person](db).With("notes").OrderBy("id", "asc").Get(ctx)
	c.Assert(err, IsNil)
	c.Assert(people, HasLen, 3)
	c.Check(statements(c), DeepEquals, []string{
		"SELECT * FROM person ORDER BY id ASC",
		"SELECT * FROM notes WHERE person_id IN (?, ?, ?)",
	})

	counts := []int{2, 1, 0}
	for i, p := range people {
		c.Check(p.Relation("notes").State, Equals, sqlrecord.Loaded)
		notes, err := p.Notes(ctx, db)
		c.Assert(err, IsNil)
		c.Check(notes, HasLen, counts[i])
	}
	c.Check(statements(c), HasLen, 0)
}

func (s *RecordSuite) TestEagerLoadingAllKinds(c *C) {
	db := openDB(c)
	ctx := context.Background()

	people, err := sqlrecord.NewRepo[Person](db).
		With("address", "note", "teams").
		OrderBy("id", "asc").
		Get(ctx)
	c.Assert(err, IsNil)
	c.Assert(people, HasLen, 3)
	c.Check(statements(c), DeepEquals, []string{
		"SELECT * FROM person ORDER BY id ASC",
		"SELECT * FROM address WHERE id IN (?, ?)",
		"SELECT * FROM notes WHERE person_id IN (?, ?, ?)",
		"SELECT team.*, person_team.person_id AS pivot_person_id FROM team INNER JOIN person_team ON team.id = person_team.team_id WHERE person_team.person_id IN (?, ?, ?)",
	})

	fred, mark, mary := people[0], people[1], people[2]
	c.Check(fred.Relation("address").Value.(*Address).Street, Equals, "Main Street")
	c.Check(mark.Relation("address").State, Equals, sqlrecord.Absent)
	c.Check(mary.Relation("address").Value.(*Address).Street, Equals, "Church Road")

	c.Check(fred.Relation("note").Value.(*Note).Body, Equals, "first")
	c.Check(mark.Relation("note").Value.(*Note).Body, Equals, "third")
	c.Check(mary.Relation("note").State, Equals, sqlrecord.Absent)

	c.Check(fred.Relation("teams").Value.([]*Team), HasLen, 2)
	c.Check(mark.Relation("teams").Value.([]*Team)[0].Title, Equals, "hr")
	c.Check(mary.Relation("teams").Value.([]*Team), HasLen, 0)
	c.Check(sqlrecord.IsDirty(fred.Relation("teams").Value.([]*Team)[0]), Equals, false)
}

func (s *RecordSuite) TestEagerUnknownRelation(c *C) {
	db := openDB(c)

	_, err := sqlrecord.NewRepo[Person](db).With("friends").Get(context.Background())
	c.Assert(err, ErrorMatches, `model Person has no relation "friends"`)
	var rerr *sqlrecord.RelationError
	c.Check(errors.As(err, &rerr), Equals, true)

	// Models without an EagerLoad method support no relation at all.
	_, err = sqlrecord.NewRepo[Team](db).With("people").Get(context.Background())
	c.Assert(err, ErrorMatches, `model Team has no relation "people"`)
}

func (s *RecordSuite) TestSerialization(c *C) {
	db := openDB(c)
	ctx := context.Background()

	fred, err := sqlrecord.NewRepo[Person](db).With("address", "notes").Find(ctx, 1)
	c.Assert(err, IsNil)
	mark, err := sqlrecord.NewRepo[Person](db).With("address").Find(ctx, 2)
	c.Assert(err, IsNil)

	arr := sqlrecord.ToArray(fred)
	c.Check(arr["id"], Equals, int64(1))
	c.Check(arr["name"], Equals, "Fred")
	c.Check(arr["address"].(sqlrecord.M)["street"], Equals, "Main Street")
	c.Check(arr["notes"], HasLen, 2)
	c.Check(arr["notes"].([]any)[1].(sqlrecord.M)["body"], Equals, "second")
	_, ok := arr["teams"]
	c.Check(ok, Equals, false)

	data, err := sqlrecord.ToJSON(mark)
	c.Assert(err, IsNil)
	var decoded map[string]any
	c.Assert(json.Unmarshal(data, &decoded), IsNil)
	c.Check(decoded["name"], Equals, "Mark")
	c.Check(decoded["address_id"], IsNil)
	address, ok := decoded["address"]
	c.Check(ok, Equals, true)
	c.Check(address, IsNil)

	packed, err := sqlrecord.ToMsgpack(fred)
	c.Assert(err, IsNil)
	var unpacked map[string]any
	c.Assert(msgpack.Unmarshal(packed, &unpacked), IsNil)
	c.Check(unpacked["email"], Equals, "fred@example.com")
	c.Check(unpacked["notes"], HasLen, 2)

	unsaved := &Person{Name: "Unsaved"}
	_, ok = sqlrecord.ToArray(unsaved)["id"]
	c.Check(ok, Equals, false)
}

func (s *RecordSuite) TestRepoInTransaction(c *C) {
	db := openDB(c)
	ctx := context.Background()

	tx, err := db.Begin(ctx, nil)
	c.Assert(err, IsNil)
	teams := sqlrecord.NewRepo[Team](tx)
	t, err := teams.Create(ctx, sqlrecord.M{"title": "legal"})
	c.Assert(err, IsNil)
	c.Check(t.ID, Equals, int64(3))
	c.Assert(tx.Rollback(), IsNil)

	n, err := sqlrecord.NewRepo[Team](db).Count(ctx)
	c.Assert(err, IsNil)
	c.Check(n, Equals, int64(2))
}
