package database

import (
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
)

var itemTable = entryTable{
	name:      "tblItems",
	id:        "ItemID",
	uuid:      "ItemUUID",
	code:      "ItemCode",
	title:     "ItemName",
	kindType:  "ItemType",
	price:     "ItemPrice",
	careType:  "ItemCareType",
	frequency: "ItemFrequency",
	patCat:    "ItemPatCat",

	mutationTable: "medical_ItemMutation",
	mutationFK:    "item_id",

	pricelistTable:  "tblPLItems",
	pricelistID:     "PLItemID",
	pricelistUUID:   "PLItemUUID",
	pricelistDetail: "tblPLItemsDetail",
}

// ItemAdapter implements ItemRepository on tblItems
type ItemAdapter struct {
	*entryAdapter[*entities.Item]
}

var _ repositories.ItemRepository = (*ItemAdapter)(nil)

func newItemAdapter(q execer) *ItemAdapter {
	return &ItemAdapter{&entryAdapter[*entities.Item]{
		q:       q,
		t:       itemTable,
		label:   "item",
		columns: append(itemTable.baseColumns(), "ItemPackage", "Quantity"),
		scan:    scanItem,
		record:  itemRecord,
		filter:  itemFilter,
	}}
}

func scanItem(row rowScanner) (*entities.Item, error) {
	var (
		item entities.Item
		base entryScan
		pkg  sql.NullString
	)
	dest := append(base.dest(&item.Entry), &pkg, &item.Quantity)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	base.apply(&item.Entry)
	item.Package = stringPtr(pkg)
	return &item, nil
}

func itemRecord(item *entities.Item) goqu.Record {
	rec := itemTable.baseRecord(&item.Entry)
	var pkg interface{}
	if item.Package != nil {
		pkg = *item.Package
	}
	rec["ItemPackage"] = pkg
	rec["Quantity"] = item.Quantity
	return rec
}

func itemFilter(f entities.CatalogFilter) []exp.Expression {
	var exprs []exp.Expression
	if f.Package != "" {
		exprs = append(exprs, goqu.C("ItemPackage").ILike("%"+escapeLike(f.Package)+"%"))
	}
	return exprs
}
