package relation

import (
	"errors"
	"testing"

	"github.com/mwbgen/mwbgen/internal/loader"
	"github.com/mwbgen/mwbgen/internal/mwb/mwbtest"
	"github.com/mwbgen/mwbgen/internal/schema"
)

func buildModel(t *testing.T, tables ...*mwbtest.Table) *schema.Model {
	t.Helper()
	m := schema.NewModel()
	for _, tbl := range tables {
		node, err := mwbtest.Node(tbl.XML())
		if err != nil {
			t.Fatalf("parsing %s: %v", tbl.Name, err)
		}
		st, err := loader.Load(node, nil)
		if errors.Is(err, loader.ErrIgnored) {
			m.Ignore(st.ID, st.Name)
			continue
		}
		if err != nil {
			t.Fatalf("loading %s: %v", tbl.Name, err)
		}
		if err := m.Add(st); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func authorsAndBooks() (*mwbtest.Table, *mwbtest.Table) {
	authors := mwbtest.NewTable("t.authors", "authors")
	authors.IDCol()
	authors.Col("name", "varchar").Length = 45

	books := mwbtest.NewTable("t.books", "books")
	books.IDCol()
	books.Col("title", "varchar").Length = 100
	books.Col("author_id", "int").Unsigned = true
	books.Ref("author_id", authors)
	return authors, books
}

func table(t *testing.T, m *schema.Model, name string) *schema.Table {
	t.Helper()
	tbl, ok := m.ByName(name)
	if !ok {
		t.Fatalf("table %s not found", name)
	}
	return tbl
}

func tableNames(tables []*schema.Table) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

func TestResolveOneToMany(t *testing.T) {
	authors, books := authorsAndBooks()
	m := buildModel(t, books, authors)

	if err := Resolve(m, Options{}, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	b := table(t, m, "books")
	calls := b.ForeignKeyCalls()
	if len(calls) != 1 {
		t.Fatalf("books has %d foreign keys, want 1", len(calls))
	}
	fk := calls[0]
	if fk.On() != "authors" {
		t.Errorf("on = %q, want authors", fk.On())
	}
	if fk.FK.Related != "t.authors" || !fk.FK.Resolved || fk.FK.Source {
		t.Errorf("books FK = %+v", fk.FK)
	}
	if _, ok := b.ForeignKeys()["authors"]; !ok {
		t.Error("ForeignKeys() should be keyed by the target name")
	}

	a := table(t, m, "authors")
	if len(a.RelationSources) != 1 {
		t.Fatalf("authors has %d relation sources, want 1", len(a.RelationSources))
	}
	src := a.RelationSources[0]
	if !src.FK.Source || !src.FK.Many || src.FK.Related != "t.books" {
		t.Errorf("relation source = %+v", src.FK)
	}
	if a.Pivot || b.Pivot {
		t.Error("no pivot expected")
	}
}

func TestResolveReferencedColumnName(t *testing.T) {
	countries := mwbtest.NewTable("t.countries", "countries")
	countries.Col("code", "char").Length = 2
	countries.Index("PRIMARY", "PRIMARY", false, "code")

	users := mwbtest.NewTable("t.users", "users")
	users.IDCol()
	users.Col("country_code", "char").Length = 2
	fk := users.Ref("country_code", countries)
	fk.RefColumns = []string{"t.countries.code"}

	m := buildModel(t, countries, users)
	if err := Resolve(m, Options{}, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	c := table(t, m, "users").ForeignKeyCalls()[0]
	if got := c.Arg("references"); got != "code" {
		t.Errorf("references = %v, want code", got)
	}
}

func TestOrderReferencedFirst(t *testing.T) {
	authors, books := authorsAndBooks()
	m := buildModel(t, books, authors)
	if err := Resolve(m, Options{}, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	order, err := Order(m)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	got := tableNames(order)
	if len(got) != 2 || got[0] != "authors" || got[1] != "books" {
		t.Errorf("order = %v, want [authors books]", got)
	}
}

func TestOrderChain(t *testing.T) {
	a := mwbtest.NewTable("t.a", "a")
	b := mwbtest.NewTable("t.b", "b")
	c := mwbtest.NewTable("t.c", "c")
	for _, tbl := range []*mwbtest.Table{a, b, c} {
		tbl.IDCol()
	}
	a.Col("b_id", "int")
	a.Ref("b_id", b)
	b.Col("c_id", "int")
	b.Ref("c_id", c)

	m := buildModel(t, a, b, c)
	if err := Resolve(m, Options{}, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	order, err := Order(m)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	got := tableNames(order)
	want := []string{"c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSelfReferenceOrderable(t *testing.T) {
	categories := mwbtest.NewTable("t.categories", "categories")
	categories.IDCol()
	categories.Col("parent_id", "int").Nullable = true
	categories.Ref("parent_id", categories)

	m := buildModel(t, categories)
	if err := Resolve(m, Options{}, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	order, err := Order(m)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if len(order) != 1 || order[0].Name != "categories" {
		t.Errorf("order = %v", tableNames(order))
	}

	c := order[0]
	if len(c.ForeignKeys()) != 0 {
		t.Error("self reference must not count as a dependency")
	}
	if len(c.RelationSources) != 1 {
		t.Errorf("self reference should mirror onto the table itself, got %d sources", len(c.RelationSources))
	}
}

func TestCycleDetected(t *testing.T) {
	a := mwbtest.NewTable("t.a", "a")
	b := mwbtest.NewTable("t.b", "b")
	a.IDCol()
	b.IDCol()
	a.Col("b_id", "int")
	a.Ref("b_id", b)
	b.Col("a_id", "int")
	b.Ref("a_id", a)

	m := buildModel(t, a, b)
	if err := Resolve(m, Options{}, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	_, err := Order(m)
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("Order() error = %v, want CycleError", err)
	}
	if len(cerr.Tables) != 2 {
		t.Errorf("cycle tables = %v", cerr.Tables)
	}
	if len(cerr.Cycles) == 0 {
		t.Error("expected the cycle path in the error")
	}
}

func TestUnknownReference(t *testing.T) {
	books := mwbtest.NewTable("t.books", "books")
	books.IDCol()
	books.Col("author_id", "int")
	books.Ref("author_id", mwbtest.NewTable("t.missing", "missing"))

	m := buildModel(t, books)
	err := Resolve(m, Options{}, nil)
	var rerr *ReferenceError
	if !errors.As(err, &rerr) {
		t.Fatalf("Resolve() error = %v, want ReferenceError", err)
	}
	if rerr.Target != "t.missing" || rerr.Table != "books" {
		t.Errorf("ReferenceError = %+v", rerr)
	}
}

func TestReferenceToIgnoredTable(t *testing.T) {
	authors, books := authorsAndBooks()
	authors.Comment = "ignore=1"

	m := buildModel(t, authors, books)
	if len(m.Tables) != 1 {
		t.Fatalf("ignored table was loaded: %v", tableNames(m.Tables))
	}
	err := Resolve(m, Options{}, nil)
	var rerr *ReferenceError
	if !errors.As(err, &rerr) {
		t.Fatalf("Resolve() error = %v, want ReferenceError", err)
	}
	if rerr.Ignored != "authors" || rerr.Table != "books" {
		t.Errorf("ReferenceError = %+v", rerr)
	}
}

func TestReferenceToIgnoredTableAllowed(t *testing.T) {
	authors, books := authorsAndBooks()
	authors.Comment = "ignore=1"

	m := buildModel(t, authors, books)
	if err := Resolve(m, Options{AllowIgnoredRefs: true}, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if calls := table(t, m, "books").ForeignKeyCalls(); len(calls) != 0 {
		t.Errorf("foreign key to ignored table kept: %v", calls)
	}
}

func pivotFixture() []*mwbtest.Table {
	authors, books := authorsAndBooks()
	pivot := mwbtest.NewTable("t.author_book", "author_book")
	pivot.Col("author_id", "int")
	pivot.Col("book_id", "int")
	pivot.Ref("author_id", authors)
	pivot.Ref("book_id", books)
	return []*mwbtest.Table{authors, books, pivot}
}

func TestPivotDetection(t *testing.T) {
	m := buildModel(t, pivotFixture()...)
	if err := Resolve(m, Options{}, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	p := table(t, m, "author_book")
	if !p.Pivot {
		t.Fatal("author_book should be detected as pivot")
	}
	if p.NeedsModel() {
		t.Error("pivot without extra columns needs no model")
	}

	for _, tc := range []struct{ table, related string }{
		{"authors", "t.books"},
		{"books", "t.authors"},
	} {
		tbl := table(t, m, tc.table)
		var found *schema.Call
		for _, c := range tbl.ForeignKeyCalls() {
			if c.FK.Pivot {
				found = c
			}
		}
		if found == nil {
			t.Errorf("%s has no belongs-to-many descriptor", tc.table)
			continue
		}
		if found.FK.Related != tc.related || !found.FK.Many || found.FK.PivotTable != "author_book" {
			t.Errorf("%s pivot descriptor = %+v", tc.table, found.FK)
		}
		for on, c := range tbl.ForeignKeys() {
			if c.FK.Pivot {
				t.Errorf("%s: pivot descriptor must not become a dependency on %s", tc.table, on)
			}
		}
	}

	order, err := Order(m)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if got := tableNames(order); got[len(got)-1] != "author_book" {
		t.Errorf("pivot should come last, order = %v", got)
	}
}

func TestPivotNotDetectedWhenReferenced(t *testing.T) {
	tables := pivotFixture()
	pivot := tables[2]
	pivot.IDCol()
	notes := mwbtest.NewTable("t.notes", "notes")
	notes.IDCol()
	notes.Col("author_book_id", "int")
	notes.Ref("author_book_id", pivot)

	m := buildModel(t, append(tables, notes)...)
	if err := Resolve(m, Options{}, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if table(t, m, "author_book").Pivot {
		t.Error("a referenced table must not be a pivot")
	}
}

func TestForcedPivotFallsBackToOtherKey(t *testing.T) {
	users := mwbtest.NewTable("t.users", "users")
	users.IDCol()
	groups := mwbtest.NewTable("t.groups", "groups")
	groups.IDCol()
	memberships := mwbtest.NewTable("t.memberships", "memberships")
	memberships.Col("user_id", "int")
	memberships.Col("group_id", "int")
	memberships.Ref("user_id", users)
	memberships.Ref("group_id", groups)

	m := buildModel(t, users, groups, memberships)
	if err := Resolve(m, Options{Pivots: []string{"memberships"}}, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	u := table(t, m, "users")
	var related string
	for _, c := range u.ForeignKeyCalls() {
		if c.FK.Pivot {
			related = c.FK.Related
		}
	}
	if related != "t.groups" {
		t.Errorf("users belongs-to-many related = %q, want t.groups", related)
	}
}

func TestPivotWithoutPartner(t *testing.T) {
	users := mwbtest.NewTable("t.users", "users")
	users.IDCol()
	logins := mwbtest.NewTable("t.logins", "logins")
	logins.Col("user_id", "int")
	logins.Ref("user_id", users)
	logins.Comment = "isPivot=1"

	m := buildModel(t, users, logins)
	err := Resolve(m, Options{}, nil)
	var perr *PivotError
	if !errors.As(err, &perr) {
		t.Fatalf("Resolve() error = %v, want PivotError", err)
	}
	if perr.Table != "logins" || perr.Linked != "users" {
		t.Errorf("PivotError = %+v", perr)
	}
}
