package entities

// Service levels
const (
	ServiceLevelSimple       = "S"
	ServiceLevelVisit        = "V"
	ServiceLevelDayHospital  = "D"
	ServiceLevelHospitalCare = "H"
)

// Service categories
const (
	ServiceCategorySurgery         = "S"
	ServiceCategoryDelivery        = "D"
	ServiceCategoryAntenatal       = "A"
	ServiceCategoryHospitalization = "H"
	ServiceCategoryConsultation    = "C"
	ServiceCategoryOther           = "O"
	ServiceCategoryVisit           = "V"
)

// Package types
const (
	PackageTypeSingle        = "S"
	PackageTypePackage       = "P"
	PackageTypeFeeForService = "F"
)

// Service represents a billable procedure. A package service is composed of
// other items and services through its child links.
type Service struct {
	Entry
	Level       string  `json:"level"`
	Category    *string `json:"category,omitempty"`
	PackageType string  `json:"package_type"`
	ManualPrice bool    `json:"manual_price"`

	// Populated only when the caller asks for children.
	Items    []*ServiceItem    `json:"items,omitempty"`
	Services []*ServiceService `json:"services,omitempty"`
}

var _ CatalogEntry = (*Service)(nil)

// Base returns the shared entry fields
func (s *Service) Base() *Entry { return &s.Entry }

// Kind returns KindService
func (s *Service) Kind() EntryKind { return KindService }

// IsPackage reports whether the service aggregates other catalog entries
func (s *Service) IsPackage() bool {
	return s.PackageType != "" && s.PackageType != PackageTypeSingle
}

// ResetBusinessFields clears every business field
func (s *Service) ResetBusinessFields() {
	s.Entry.resetBusinessFields()
	s.Level = ""
	s.Category = nil
	s.PackageType = ""
	s.ManualPrice = false
}

// AssignFrom copies the business fields of src, leaving identity, validity
// and child links untouched.
func (s *Service) AssignFrom(src *Service) {
	s.Entry.assignBusinessFields(&src.Entry)
	s.Level = src.Level
	s.Category = cloneString(src.Category)
	s.PackageType = src.PackageType
	s.ManualPrice = src.ManualPrice
}

// Clone returns a deep copy, child links included
func (s *Service) Clone() *Service {
	c := &Service{
		Entry:       s.Entry.clone(),
		Level:       s.Level,
		Category:    cloneString(s.Category),
		PackageType: s.PackageType,
		ManualPrice: s.ManualPrice,
	}
	for _, l := range s.Items {
		c.Items = append(c.Items, l.Clone())
	}
	for _, l := range s.Services {
		c.Services = append(c.Services, l.Clone())
	}
	return c
}
