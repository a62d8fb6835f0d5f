// Package example declares the mapped shop domain used by the demo command
// and the schema explorer: customers place orders made of lines for
// products, and orders carry free-form tags.
package example

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/faucetdb/sluice/internal/mapping"
	"github.com/faucetdb/sluice/internal/schema"
)

// SourceName is the schema source the shop mappings register into.
const SourceName = "shop"

type Customer struct {
	ID    int64
	Name  string
	Email *string
}

type Product struct {
	SKU   string
	Title string
	Price float64
}

type OrderLine struct {
	ID       int64
	Product  *Product
	Quantity int32
}

type Tag struct {
	ID    uuid.UUID
	Label string
}

type Order struct {
	ID       int64
	Placed   time.Time
	Paid     bool
	Customer *Customer
	Lines    []*OrderLine
	Tags     []*Tag
}

// Register declares the shop mappings in c.
func Register(c *mapping.Context) error {
	cm := mapping.New[Customer]("Customer")
	mapping.ID(cm, "Id", func(c *Customer) int64 { return c.ID }, func(c *Customer, v int64) { c.ID = v }).
		TurnOnAutoIncrement()
	mapping.Map(cm, "Name", func(c *Customer) string { return c.Name }, func(c *Customer, v string) { c.Name = v }).
		DoNotAllowNullValues().SetMaxLength(100)
	mapping.Map(cm, "Email", func(c *Customer) *string { return c.Email }, func(c *Customer, v *string) { c.Email = v }).
		ThisShouldBeUnique().SetMaxLength(255)

	pm := mapping.New[Product]("Product")
	mapping.ID(pm, "SKU", func(p *Product) string { return p.SKU }, func(p *Product, v string) { p.SKU = v }).
		SetMaxLength(32)
	mapping.Map(pm, "Title", func(p *Product) string { return p.Title }, func(p *Product, v string) { p.Title = v }).
		DoNotAllowNullValues().SetMaxLength(200)
	mapping.Map(pm, "Price", func(p *Product) float64 { return p.Price }, func(p *Product, v float64) { p.Price = v }).
		DoNotAllowNullValues().SetDefaultValue(0)

	lm := mapping.New[OrderLine]("OrderLine")
	mapping.ID(lm, "Id", func(l *OrderLine) int64 { return l.ID }, func(l *OrderLine, v int64) { l.ID = v }).
		TurnOnAutoIncrement()
	mapping.Reference(lm, "Product", func(l *OrderLine) *Product { return l.Product }, func(l *OrderLine, v *Product) { l.Product = v }).
		DoNotAllowNullValues().LoadWithOwner()
	mapping.Map(lm, "Quantity", func(l *OrderLine) int32 { return l.Quantity }, func(l *OrderLine, v int32) { l.Quantity = v }).
		SetDefaultValue(1)

	tm := mapping.New[Tag]("Tag")
	mapping.ID(tm, "Id", func(t *Tag) uuid.UUID { return t.ID }, func(t *Tag, v uuid.UUID) { t.ID = v })
	mapping.Map(tm, "Label", func(t *Tag) string { return t.Label }, func(t *Tag, v string) { t.Label = v }).
		ThisShouldBeUnique().SetMaxLength(50)

	om := mapping.New[Order]("Order")
	mapping.ID(om, "Id", func(o *Order) int64 { return o.ID }, func(o *Order, v int64) { o.ID = v }).
		TurnOnAutoIncrement()
	mapping.Map(om, "Placed", func(o *Order) time.Time { return o.Placed }, func(o *Order, v time.Time) { o.Placed = v }).
		DoNotAllowNullValues().TurnOnIndexing()
	mapping.Map(om, "Paid", func(o *Order) bool { return o.Paid }, func(o *Order, v bool) { o.Paid = v })
	mapping.Reference(om, "Customer", func(o *Order) *Customer { return o.Customer }, func(o *Order, v *Customer) { o.Customer = v }).
		TurnOnIndexing().TurnOnCascade().LoadWithOwner()
	mapping.OneToMany(om, "Lines", func(o *Order) []*OrderLine { return o.Lines }, func(o *Order, v []*OrderLine) { o.Lines = v }).
		TurnOnCascade().LoadWithOwner()
	mapping.ManyToMany(om, "Tags", func(o *Order) []*Tag { return o.Tags }, func(o *Order, v []*Tag) { o.Tags = v }).
		SetTableName("OrderTag").TurnOnCascade()

	for _, err := range []error{
		mapping.Register(c, cm),
		mapping.Register(c, pm),
		mapping.Register(c, lm),
		mapping.Register(c, tm),
		mapping.Register(c, om),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Setup registers the shop mappings in a fresh mapping context and builds
// the schema source they describe inside sc.
func Setup(sc *schema.Context) (*mapping.Context, *schema.Source, error) {
	mc := mapping.NewContext()
	if err := Register(mc); err != nil {
		return nil, nil, err
	}
	src := sc.AddSource(SourceName)
	if err := mc.Setup(src); err != nil {
		return nil, nil, fmt.Errorf("setup shop mappings: %w", err)
	}
	return mc, src, nil
}
