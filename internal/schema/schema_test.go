package schema

import (
	"errors"
	"reflect"
	"testing"
)

func shopSource(t *testing.T) *Source {
	t.Helper()
	ctx := NewContext()
	src := ctx.AddSource("shop")

	// Registered child-first on purpose so CreationOrder has work to do.
	orders := src.AddTable("Order")
	mustAdd(t, orders, ColumnDef{Name: "ID", DataType: "int64", PrimaryKey: true, Identity: true})
	mustAdd(t, orders, ColumnDef{Name: "Customer", DataType: "int64", Nullable: true,
		ForeignKeyTable: "Customer", ForeignKeyColumn: "ID", OnDeleteCascade: true})

	customers := src.AddTable("Customer")
	mustAdd(t, customers, ColumnDef{Name: "ID", DataType: "int64", PrimaryKey: true, Identity: true})
	mustAdd(t, customers, ColumnDef{Name: "Email", DataType: "string", Length: 200, Unique: true})
	mustAdd(t, customers, ColumnDef{Name: "Name", DataType: "string", Index: true})
	return src
}

func mustAdd(t *testing.T, tbl *Table, def ColumnDef) *Column {
	t.Helper()
	c, err := tbl.AddColumn(def)
	if err != nil {
		t.Fatalf("AddColumn(%s.%s): %v", tbl.Name, def.Name, err)
	}
	return c
}

func TestAddColumnRejectsDuplicates(t *testing.T) {
	src := NewContext().AddSource("s")
	tbl := src.AddTable("T")
	mustAdd(t, tbl, ColumnDef{Name: "ID", DataType: "int64", PrimaryKey: true})

	tests := []struct {
		name string
		def  ColumnDef
		want error
	}{
		{"same name", ColumnDef{Name: "ID", DataType: "string"}, ErrDuplicateColumn},
		{"same name other case", ColumnDef{Name: "id", DataType: "string"}, ErrDuplicateColumn},
		{"second primary key", ColumnDef{Name: "Other", DataType: "int64", PrimaryKey: true}, ErrMultiplePrimaryKeys},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tbl.AddColumn(tt.def)
			if !errors.Is(err, tt.want) {
				t.Errorf("AddColumn error = %v, want %v", err, tt.want)
			}
		})
	}
	if len(tbl.Columns) != 1 {
		t.Errorf("columns = %d, want 1", len(tbl.Columns))
	}
}

func TestSetupForeignKeysResolves(t *testing.T) {
	src := shopSource(t)
	if err := src.SetupForeignKeys(); err != nil {
		t.Fatalf("SetupForeignKeys: %v", err)
	}
	fk := src.Table("order").Column("customer")
	if len(fk.ForeignKeys) != 1 {
		t.Fatalf("foreign keys = %d, want 1", len(fk.ForeignKeys))
	}
	if fk.ForeignKeys[0] != src.Table("Customer").PrimaryKey() {
		t.Error("foreign key should point at Customer.ID")
	}

	// A second pass must not duplicate links.
	if err := src.SetupForeignKeys(); err != nil {
		t.Fatalf("second SetupForeignKeys: %v", err)
	}
	if len(fk.ForeignKeys) != 1 {
		t.Errorf("foreign keys after second pass = %d, want 1", len(fk.ForeignKeys))
	}
}

func TestSetupForeignKeysReportsUnresolved(t *testing.T) {
	src := NewContext().AddSource("s")
	tbl := src.AddTable("Line")
	mustAdd(t, tbl, ColumnDef{Name: "ID", DataType: "int64", PrimaryKey: true})
	mustAdd(t, tbl, ColumnDef{Name: "Order", DataType: "int64", ForeignKeyTable: "Order", ForeignKeyColumn: "ID"})
	mustAdd(t, tbl, ColumnDef{Name: "Self", DataType: "int64", ForeignKeyTable: "Line", ForeignKeyColumn: "Missing"})

	err := src.SetupForeignKeys()
	var unresolved *UnresolvedReferencesError
	if !errors.As(err, &unresolved) {
		t.Fatalf("error = %v, want *UnresolvedReferencesError", err)
	}
	got := []string{unresolved.References[0].Reason, unresolved.References[1].Reason}
	want := []string{"table not found", "column not found"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("reasons = %v, want %v", got, want)
	}
}

func TestCreationOrder(t *testing.T) {
	src := shopSource(t)
	line := src.AddTable("Line")
	mustAdd(t, line, ColumnDef{Name: "ID", DataType: "int64", PrimaryKey: true})
	mustAdd(t, line, ColumnDef{Name: "Order", DataType: "int64", ForeignKeyTable: "Order", ForeignKeyColumn: "ID"})
	mustAdd(t, line, ColumnDef{Name: "Parent", DataType: "int64", ForeignKeyTable: "Line", ForeignKeyColumn: "ID"})

	var names []string
	for _, tbl := range src.CreationOrder() {
		names = append(names, tbl.Name)
	}
	want := []string{"Customer", "Order", "Line"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("CreationOrder = %v, want %v", names, want)
	}
}

func TestTableDefinition(t *testing.T) {
	src := shopSource(t)
	def := src.Table("Order").Definition()

	if !reflect.DeepEqual(def.PrimaryKey, []string{"ID"}) {
		t.Errorf("PrimaryKey = %v", def.PrimaryKey)
	}
	if len(def.ForeignKeys) != 1 {
		t.Fatalf("foreign keys = %d, want 1", len(def.ForeignKeys))
	}
	fk := def.ForeignKeys[0]
	if fk.Name != "fk_Order_Customer_Customer" || fk.OnDelete != "CASCADE" || fk.ReferencedColumn != "ID" {
		t.Errorf("unexpected foreign key %+v", fk)
	}

	cust := src.Table("Customer").Definition()
	if len(cust.Indexes) != 1 || cust.Indexes[0].Name != "idx_Customer_Name" {
		t.Errorf("indexes = %+v, want idx_Customer_Name only", cust.Indexes)
	}
	email := cust.Columns[1]
	if !email.IsUnique || email.MaxLength == nil || *email.MaxLength != 200 {
		t.Errorf("email column = %+v", email)
	}
}

func TestValidateDuplicateTable(t *testing.T) {
	src := NewContext().AddSource("s")
	src.AddTable("A")
	src.AddTable("a")
	if err := src.Validate(); !errors.Is(err, ErrDuplicateTable) {
		t.Errorf("Validate = %v, want ErrDuplicateTable", err)
	}
}

func TestSourceDefinitionIncludesRoutines(t *testing.T) {
	src := shopSource(t)
	src.AddView("active_customers", "SELECT * FROM Customer")
	src.ImportRoutines(nil)
	src.AddStoredProcedure("purge", "DELETE FROM Customer")

	def := src.Definition()
	if len(def.Tables) != 2 || def.Tables[0].Name != "Customer" {
		t.Errorf("tables should be in creation order, got %+v", def.Tables)
	}
	if len(def.Views) != 1 || len(def.Procedures) != 1 || len(def.Functions) != 0 {
		t.Errorf("unexpected routines: %+v", def)
	}
}
