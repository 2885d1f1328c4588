package dataset

// Column names of the vaccination dataset.
const (
	ColumnState       = "STATE"
	ColumnCity        = "CITY"
	ColumnAgeGroup    = "AGE_GROUP"
	ColumnGender      = "GENDER"
	ColumnEthnicity   = "ETHNICITY"
	ColumnVaccinated  = "VACCINATED"
	ColumnYear        = "Year"
	ColumnDescription = "DESCRIPTION"
)

// DefaultColumns is the schema of the data table before the first load.
var DefaultColumns = []Column{
	{Name: ColumnState, Kind: KindString},
	{Name: ColumnCity, Kind: KindString},
	{Name: ColumnAgeGroup, Kind: KindString},
	{Name: ColumnGender, Kind: KindString},
	{Name: ColumnEthnicity, Kind: KindString},
	{Name: ColumnVaccinated, Kind: KindBool},
	{Name: ColumnYear, Kind: KindInteger},
	{Name: ColumnDescription, Kind: KindString},
}

// FilterColumns are the columns the dashboard offers as filters.
var FilterColumns = []string{
	ColumnState,
	ColumnCity,
	ColumnAgeGroup,
	ColumnGender,
	ColumnEthnicity,
	ColumnVaccinated,
	ColumnYear,
}
