package casedata

// AgeUnknown is the sentinel stored when the age cell is missing or unparseable.
const AgeUnknown int32 = -1

// Sex values after normalization. Anything else is stored as "" (unknown).
const (
	SexMale   = "M"
	SexFemale = "F"
)

// Record is one reported case after normalization.
//
// Text fields use "" for missing values; the raw "nan"/empty cells never
// survive normalization. Dates use NullDate for missing values. Age uses
// AgeUnknown.
type Record struct {
	ReportDate       Date
	CaseID           string
	NotificationDate Date
	DepartmentCode   string
	Department       string
	MunicipalityCode string
	Municipality     string
	Age              int32
	AgeUnit          string
	Sex              string
	ContagionType    string
	Location         string
	State            string
	CountryCode      string
	Country          string
	Recovered        string
	SymptomOnsetDate Date
	DeathDate        Date
	DiagnosisDate    Date
	RecoveryDate     Date
	RecoveryType     string
	Ethnicity        string
	EthnicGroup      string
}

// HasValidAge reports whether the record carries a usable age. Only strictly
// positive ages count; zero is excluded along with the sentinel.
func (r *Record) HasValidAge() bool {
	return r.Age > 0
}

// Text returns the value of a text field. It panics for non-text fields.
func (r *Record) Text(f Field) string {
	return *textFields[f](r)
}

// Date returns the value of a date field. It panics for non-date fields.
func (r *Record) Date(f Field) Date {
	return *dateFields[f](r)
}

// textFields maps each text column to its Record slot.
var textFields = map[Field]func(*Record) *string{
	FieldCaseID:           func(r *Record) *string { return &r.CaseID },
	FieldDepartmentCode:   func(r *Record) *string { return &r.DepartmentCode },
	FieldDepartment:       func(r *Record) *string { return &r.Department },
	FieldMunicipalityCode: func(r *Record) *string { return &r.MunicipalityCode },
	FieldMunicipality:     func(r *Record) *string { return &r.Municipality },
	FieldAgeUnit:          func(r *Record) *string { return &r.AgeUnit },
	FieldSex:              func(r *Record) *string { return &r.Sex },
	FieldContagionType:    func(r *Record) *string { return &r.ContagionType },
	FieldLocation:         func(r *Record) *string { return &r.Location },
	FieldState:            func(r *Record) *string { return &r.State },
	FieldCountryCode:      func(r *Record) *string { return &r.CountryCode },
	FieldCountry:          func(r *Record) *string { return &r.Country },
	FieldRecovered:        func(r *Record) *string { return &r.Recovered },
	FieldRecoveryType:     func(r *Record) *string { return &r.RecoveryType },
	FieldEthnicity:        func(r *Record) *string { return &r.Ethnicity },
	FieldEthnicGroup:      func(r *Record) *string { return &r.EthnicGroup },
}

// dateFields maps each date column to its Record slot.
var dateFields = map[Field]func(*Record) *Date{
	FieldReportDate:       func(r *Record) *Date { return &r.ReportDate },
	FieldNotificationDate: func(r *Record) *Date { return &r.NotificationDate },
	FieldSymptomOnsetDate: func(r *Record) *Date { return &r.SymptomOnsetDate },
	FieldDeathDate:        func(r *Record) *Date { return &r.DeathDate },
	FieldDiagnosisDate:    func(r *Record) *Date { return &r.DiagnosisDate },
	FieldRecoveryDate:     func(r *Record) *Date { return &r.RecoveryDate },
}

// emptyRecord has every field set to its missing value.
func emptyRecord() Record {
	return Record{
		ReportDate:       NullDate,
		NotificationDate: NullDate,
		Age:              AgeUnknown,
		SymptomOnsetDate: NullDate,
		DeathDate:        NullDate,
		DiagnosisDate:    NullDate,
		RecoveryDate:     NullDate,
	}
}
