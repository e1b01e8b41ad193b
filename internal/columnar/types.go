package columnar

import "covidstats/internal/casedata"

// caseRow is the on-disk layout of one case record. Dates are Parquet DATE
// columns, the age is a required int32 (keeping the -1 sentinel) and text
// columns are dictionary encoded; the id column is too unique to benefit.
type caseRow struct {
	ReportDate       *int32  `parquet:"fecha_reporte_web,optional,date"`
	CaseID           *string `parquet:"id_de_caso,optional"`
	NotificationDate *int32  `parquet:"fecha_de_notificacion,optional,date"`
	DepartmentCode   *string `parquet:"codigo_divipola_departamento,optional,dict"`
	Department       *string `parquet:"nombre_departamento,optional,dict"`
	MunicipalityCode *string `parquet:"codigo_divipola_municipio,optional,dict"`
	Municipality     *string `parquet:"nombre_municipio,optional,dict"`
	Age              int32   `parquet:"edad"`
	AgeUnit          *string `parquet:"unidad_de_medida_de_edad,optional,dict"`
	Sex              *string `parquet:"sexo,optional,dict"`
	ContagionType    *string `parquet:"tipo_de_contagio,optional,dict"`
	Location         *string `parquet:"ubicacion_del_caso,optional,dict"`
	State            *string `parquet:"estado,optional,dict"`
	CountryCode      *string `parquet:"codigo_iso_del_pais,optional,dict"`
	Country          *string `parquet:"nombre_del_pais,optional,dict"`
	Recovered        *string `parquet:"recuperado,optional,dict"`
	SymptomOnsetDate *int32  `parquet:"fecha_de_inicio_de_sintomas,optional,date"`
	DeathDate        *int32  `parquet:"fecha_de_muerte,optional,date"`
	DiagnosisDate    *int32  `parquet:"fecha_de_diagnostico,optional,date"`
	RecoveryDate     *int32  `parquet:"fecha_de_recuperacion,optional,date"`
	RecoveryType     *string `parquet:"tipo_de_recuperacion,optional,dict"`
	Ethnicity        *string `parquet:"pertenencia_etnica,optional,dict"`
	EthnicGroup      *string `parquet:"nombre_del_grupo_etnico,optional,dict"`
}

func toRow(r *casedata.Record) caseRow {
	return caseRow{
		ReportDate:       datePtr(r.ReportDate),
		CaseID:           strPtr(r.CaseID),
		NotificationDate: datePtr(r.NotificationDate),
		DepartmentCode:   strPtr(r.DepartmentCode),
		Department:       strPtr(r.Department),
		MunicipalityCode: strPtr(r.MunicipalityCode),
		Municipality:     strPtr(r.Municipality),
		Age:              r.Age,
		AgeUnit:          strPtr(r.AgeUnit),
		Sex:              strPtr(r.Sex),
		ContagionType:    strPtr(r.ContagionType),
		Location:         strPtr(r.Location),
		State:            strPtr(r.State),
		CountryCode:      strPtr(r.CountryCode),
		Country:          strPtr(r.Country),
		Recovered:        strPtr(r.Recovered),
		SymptomOnsetDate: datePtr(r.SymptomOnsetDate),
		DeathDate:        datePtr(r.DeathDate),
		DiagnosisDate:    datePtr(r.DiagnosisDate),
		RecoveryDate:     datePtr(r.RecoveryDate),
		RecoveryType:     strPtr(r.RecoveryType),
		Ethnicity:        strPtr(r.Ethnicity),
		EthnicGroup:      strPtr(r.EthnicGroup),
	}
}

func (c *caseRow) record() casedata.Record {
	return casedata.Record{
		ReportDate:       dateVal(c.ReportDate),
		CaseID:           strVal(c.CaseID),
		NotificationDate: dateVal(c.NotificationDate),
		DepartmentCode:   strVal(c.DepartmentCode),
		Department:       strVal(c.Department),
		MunicipalityCode: strVal(c.MunicipalityCode),
		Municipality:     strVal(c.Municipality),
		Age:              c.Age,
		AgeUnit:          strVal(c.AgeUnit),
		Sex:              strVal(c.Sex),
		ContagionType:    strVal(c.ContagionType),
		Location:         strVal(c.Location),
		State:            strVal(c.State),
		CountryCode:      strVal(c.CountryCode),
		Country:          strVal(c.Country),
		Recovered:        strVal(c.Recovered),
		SymptomOnsetDate: dateVal(c.SymptomOnsetDate),
		DeathDate:        dateVal(c.DeathDate),
		DiagnosisDate:    dateVal(c.DiagnosisDate),
		RecoveryDate:     dateVal(c.RecoveryDate),
		RecoveryType:     strVal(c.RecoveryType),
		Ethnicity:        strVal(c.Ethnicity),
		EthnicGroup:      strVal(c.EthnicGroup),
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func datePtr(d casedata.Date) *int32 {
	if !d.Valid() {
		return nil
	}
	v := int32(d)
	return &v
}

func dateVal(p *int32) casedata.Date {
	if p == nil {
		return casedata.NullDate
	}
	return casedata.Date(*p)
}
