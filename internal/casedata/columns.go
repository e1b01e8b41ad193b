package casedata

// Field identifies one canonical column of the case-record schema.
type Field int

const (
	FieldReportDate Field = iota
	FieldCaseID
	FieldNotificationDate
	FieldDepartmentCode
	FieldDepartment
	FieldMunicipalityCode
	FieldMunicipality
	FieldAge
	FieldAgeUnit
	FieldSex
	FieldContagionType
	FieldLocation
	FieldState
	FieldCountryCode
	FieldCountry
	FieldRecovered
	FieldSymptomOnsetDate
	FieldDeathDate
	FieldDiagnosisDate
	FieldRecoveryDate
	FieldRecoveryType
	FieldEthnicity
	FieldEthnicGroup

	numFields
)

// Kind is the storage type of a column after normalization.
type Kind int

const (
	KindText Kind = iota
	KindDate
	KindAge
)

func (k Kind) String() string {
	switch k {
	case KindDate:
		return "date"
	case KindAge:
		return "int32"
	default:
		return "text"
	}
}

// Column describes one canonical column. Name is the normalized header of
// the official dataset; Aliases are normalized headers used by other
// releases of the same data (the open-data API, older CSV exports).
type Column struct {
	Field   Field
	Name    string
	Kind    Kind
	Aliases []string
}

// Columns lists the schema in source order.
var Columns = [numFields]Column{
	{FieldReportDate, "fecha_reporte_web", KindDate, nil},
	{FieldCaseID, "id_de_caso", KindText, []string{"id_caso"}},
	{FieldNotificationDate, "fecha_de_notificacion", KindDate, []string{"fecha_notificacion"}},
	{FieldDepartmentCode, "codigo_divipola_departamento", KindText, []string{"departamento_codigo"}},
	{FieldDepartment, "nombre_departamento", KindText, []string{"departamento", "departamento_nom"}},
	{FieldMunicipalityCode, "codigo_divipola_municipio", KindText, []string{"ciudad_municipio", "municipio_codigo"}},
	{FieldMunicipality, "nombre_municipio", KindText, []string{"municipio", "ciudad_municipio_nom", "ciudad_de_ubicacion"}},
	{FieldAge, "edad", KindAge, nil},
	{FieldAgeUnit, "unidad_de_medida_de_edad", KindText, []string{"unidad_medida"}},
	{FieldSex, "sexo", KindText, nil},
	{FieldContagionType, "tipo_de_contagio", KindText, []string{"fuente_tipo_contagio"}},
	{FieldLocation, "ubicacion_del_caso", KindText, []string{"ubicacion"}},
	{FieldState, "estado", KindText, nil},
	{FieldCountryCode, "codigo_iso_del_pais", KindText, []string{"pais_viajo_1_cod"}},
	{FieldCountry, "nombre_del_pais", KindText, []string{"pais_viajo_1_nom"}},
	{FieldRecovered, "recuperado", KindText, nil},
	{FieldSymptomOnsetDate, "fecha_de_inicio_de_sintomas", KindDate, []string{"fecha_inicio_sintomas"}},
	{FieldDeathDate, "fecha_de_muerte", KindDate, []string{"fecha_muerte"}},
	{FieldDiagnosisDate, "fecha_de_diagnostico", KindDate, []string{"fecha_diagnostico"}},
	{FieldRecoveryDate, "fecha_de_recuperacion", KindDate, []string{"fecha_recuperado"}},
	{FieldRecoveryType, "tipo_de_recuperacion", KindText, []string{"tipo_recuperacion"}},
	{FieldEthnicity, "pertenencia_etnica", KindText, []string{"per_etn_"}},
	{FieldEthnicGroup, "nombre_del_grupo_etnico", KindText, []string{"nom_grupo_"}},
}

var columnsByName = func() map[string]Field {
	m := make(map[string]Field, len(Columns)*2)
	for _, c := range Columns {
		m[c.Name] = c.Field
		for _, a := range c.Aliases {
			m[a] = c.Field
		}
	}
	return m
}()

// Lookup resolves a normalized header (canonical name or alias) to its field.
func Lookup(name string) (Field, bool) {
	f, ok := columnsByName[name]
	return f, ok
}

// Name returns the canonical column name of f.
func (f Field) Name() string {
	if f < 0 || f >= numFields {
		return ""
	}
	return Columns[f].Name
}

// Kind returns the storage type of f.
func (f Field) Kind() Kind {
	return Columns[f].Kind
}

func (f Field) String() string { return f.Name() }
