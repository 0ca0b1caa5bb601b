package database

import (
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
)

var serviceTable = entryTable{
	name:      "tblServices",
	id:        "ServiceID",
	uuid:      "ServiceUUID",
	code:      "ServCode",
	title:     "ServName",
	kindType:  "ServType",
	price:     "ServPrice",
	careType:  "ServCareType",
	frequency: "ServFrequency",
	patCat:    "ServPatCat",

	mutationTable: "medical_ServiceMutation",
	mutationFK:    "service_id",

	pricelistTable:  "tblPLServices",
	pricelistID:     "PLServiceID",
	pricelistUUID:   "PLServiceUUID",
	pricelistDetail: "tblPLServicesDetail",
}

// ServiceAdapter implements ServiceRepository on tblServices. Child links
// live in their own adapters.
type ServiceAdapter struct {
	*entryAdapter[*entities.Service]
}

var _ repositories.ServiceRepository = (*ServiceAdapter)(nil)

func newServiceAdapter(q execer) *ServiceAdapter {
	return &ServiceAdapter{&entryAdapter[*entities.Service]{
		q:       q,
		t:       serviceTable,
		label:   "service",
		columns: append(serviceTable.baseColumns(), "ServLevel", "ServCategory", "PackageType", "ManualPrice"),
		scan:    scanService,
		record:  serviceRecord,
		filter:  serviceFilter,
	}}
}

func scanService(row rowScanner) (*entities.Service, error) {
	var (
		service  entities.Service
		base     entryScan
		category sql.NullString
	)
	dest := append(base.dest(&service.Entry), &service.Level, &category, &service.PackageType, &service.ManualPrice)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	base.apply(&service.Entry)
	service.Category = stringPtr(category)
	return &service, nil
}

func serviceRecord(service *entities.Service) goqu.Record {
	rec := serviceTable.baseRecord(&service.Entry)
	var category interface{}
	if service.Category != nil {
		category = *service.Category
	}
	packageType := service.PackageType
	if packageType == "" {
		packageType = entities.PackageTypeSingle
	}
	rec["ServLevel"] = service.Level
	rec["ServCategory"] = category
	rec["PackageType"] = packageType
	rec["ManualPrice"] = service.ManualPrice
	return rec
}

func serviceFilter(f entities.CatalogFilter) []exp.Expression {
	var exprs []exp.Expression
	if f.Category != "" {
		exprs = append(exprs, goqu.C("ServCategory").Eq(f.Category))
	}
	if len(f.PackageTypes) > 0 {
		exprs = append(exprs, goqu.C("PackageType").In(f.PackageTypes))
	}
	return exprs
}
