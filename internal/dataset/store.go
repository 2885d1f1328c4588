package dataset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/jon4hz/vaxboard/internal/database"
	"gorm.io/gorm"
)

// DataTable is the name of the table mirroring the remote document.
const DataTable = "vaccination_data"

// SQLite refuses statements with more than 999 bound parameters on older builds.
const maxInsertVars = 900

// columnRecord persists the kind of every data table column, so reads decode cells
// exactly as they were parsed.
type columnRecord struct {
	Position int    `gorm:"primaryKey;autoIncrement:false"`
	Name     string `gorm:"not null"`
	Kind     string `gorm:"not null"`
}

func (columnRecord) TableName() string { return "dataset_columns" }

// Load records a successful bulk replace of the data table.
type Load struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	RunID    string    `gorm:"index" json:"runId"`
	Source   string    `json:"source"`
	Rows     int       `json:"rows"`
	LoadedAt time.Time `json:"loadedAt"`
}

func (Load) TableName() string { return "dataset_loads" }

// Store is the SQLite side of the dataset cache.
type Store struct {
	db *gorm.DB
}

// NewStore opens the dataset database. The data table is created with the
// default vaccination schema if it does not exist yet.
func NewStore(dbpath string) (*Store, error) {
	db, err := database.Open(dbpath)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&columnRecord{}, &Load{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := db.Transaction(ensureDataTable); err != nil {
		return nil, fmt.Errorf("failed to prepare data table: %w", err)
	}

	return &Store{db: db}, nil
}

func ensureDataTable(tx *gorm.DB) error {
	if !tx.Migrator().HasTable(DataTable) {
		if err := createDataTable(tx, DefaultColumns); err != nil {
			return err
		}
		return writeColumns(tx, DefaultColumns)
	}

	var known int64
	if err := tx.Model(&columnRecord{}).Count(&known).Error; err != nil {
		return err
	}
	if known > 0 {
		return nil
	}

	// data table written by an older release without column metadata
	types, err := tx.Migrator().ColumnTypes(DataTable)
	if err != nil {
		return err
	}
	columns := make([]Column, 0, len(types))
	for _, t := range types {
		if t.Name() == ordinalColumn {
			continue
		}
		columns = append(columns, Column{Name: t.Name(), Kind: kindFromSQLType(t.DatabaseTypeName())})
	}
	return writeColumns(tx, columns)
}

func kindFromSQLType(sqlType string) Kind {
	t := strings.ToUpper(sqlType)
	switch {
	case strings.Contains(t, "BOOL"):
		return KindBool
	case strings.Contains(t, "INT"):
		return KindInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return KindString
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"),
		strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return KindNumber
	default:
		return KindString
	}
}

func sqlType(k Kind) string {
	switch k {
	case KindInteger:
		return "INTEGER"
	case KindNumber:
		return "REAL"
	case KindBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ordinalColumn keeps the insert order of the data table. A CSV column named
// rowid would shadow SQLite's implicit one, so storage order has its own key.
const ordinalColumn = "__vaxboard_pos"

func createDataTable(tx *gorm.DB, columns []Column) error {
	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, quoteIdent(ordinalColumn)+" INTEGER PRIMARY KEY")
	for _, c := range columns {
		defs = append(defs, quoteIdent(c.Name)+" "+sqlType(c.Kind))
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(DataTable), strings.Join(defs, ", "))
	return tx.Exec(stmt).Error
}

func writeColumns(tx *gorm.DB, columns []Column) error {
	if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&columnRecord{}).Error; err != nil {
		return err
	}
	if len(columns) == 0 {
		return nil
	}
	records := make([]columnRecord, len(columns))
	for i, c := range columns {
		records[i] = columnRecord{Position: i, Name: c.Name, Kind: c.Kind.String()}
	}
	return tx.Create(&records).Error
}

func readColumns(tx *gorm.DB) ([]Column, error) {
	var records []columnRecord
	if err := tx.Order("position").Find(&records).Error; err != nil {
		return nil, err
	}
	columns := make([]Column, len(records))
	for i, r := range records {
		kind, err := ParseKind(r.Kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", r.Name, err)
		}
		columns[i] = Column{Name: r.Name, Kind: kind}
	}
	return columns, nil
}

func countRows(tx *gorm.DB) (int, error) {
	var n int64
	if err := tx.Table(DataTable).Count(&n).Error; err != nil {
		return 0, err
	}
	return safecast.Convert[int](n)
}

// Count returns the number of rows in the data table.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := countRows(s.db.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// IsPopulated reports whether the data table holds at least one row.
func (s *Store) IsPopulated(ctx context.Context) (bool, error) {
	n, err := s.Count(ctx)
	return n > 0, err
}

// Columns returns the columns of the data table in table order.
func (s *Store) Columns(ctx context.Context) ([]Column, error) {
	return readColumns(s.db.WithContext(ctx))
}

// Table reads every row in storage order.
func (s *Store) Table(ctx context.Context) (*Table, error) {
	table := &Table{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		columns, err := readColumns(tx)
		if err != nil {
			return err
		}
		table.Columns = columns
		if len(columns) == 0 {
			return nil
		}

		names := make([]string, len(columns))
		for i, c := range columns {
			names[i] = quoteIdent(c.Name)
		}
		// tables from older releases have no ordinal column
		order := "rowid"
		if tx.Migrator().HasColumn(DataTable, ordinalColumn) {
			order = quoteIdent(ordinalColumn)
		}
		stmt := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(names, ", "), quoteIdent(DataTable), order)

		rows, err := tx.Raw(stmt).Rows()
		if err != nil {
			return err
		}
		defer rows.Close()

		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		for rows.Next() {
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}
			row := make(Row, len(columns))
			for i, c := range columns {
				row[c.Name] = fromSQL(cells[i], c.Kind)
			}
			table.Rows = append(table.Rows, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read data table: %w", err)
	}
	return table, nil
}

// ReadAll returns every row in storage order.
func (s *Store) ReadAll(ctx context.Context) ([]Row, error) {
	table, err := s.Table(ctx)
	if err != nil {
		return nil, err
	}
	return table.Rows, nil
}

// ReplaceIfEmpty drops and recreates the data table with the content of table,
// unless another writer populated it first. In that case the existing row count
// is returned and replaced is false.
func (s *Store) ReplaceIfEmpty(ctx context.Context, table *Table, source, runID string) (count int, replaced bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := countRows(tx)
		if err != nil {
			return err
		}
		if n > 0 {
			count = n
			return nil
		}

		if err := tx.Exec("DROP TABLE IF EXISTS " + quoteIdent(DataTable)).Error; err != nil {
			return err
		}
		if err := createDataTable(tx, table.Columns); err != nil {
			return err
		}
		if err := insertRows(tx, table); err != nil {
			return err
		}
		if err := writeColumns(tx, table.Columns); err != nil {
			return err
		}
		load := Load{
			RunID:    runID,
			Source:   source,
			Rows:     len(table.Rows),
			LoadedAt: time.Now(),
		}
		if err := tx.Create(&load).Error; err != nil {
			return err
		}

		count = len(table.Rows)
		replaced = true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to replace data table: %w", err)
	}
	return count, replaced, nil
}

func insertRows(tx *gorm.DB, table *Table) error {
	if len(table.Rows) == 0 || len(table.Columns) == 0 {
		return nil
	}

	names := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		names[i] = quoteIdent(c.Name)
	}
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ") + ")"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", quoteIdent(DataTable), strings.Join(names, ", "))

	batch := max(1, maxInsertVars/len(names))
	for start := 0; start < len(table.Rows); start += batch {
		end := min(start+batch, len(table.Rows))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*len(names))
		for _, row := range table.Rows[start:end] {
			values = append(values, placeholder)
			for _, c := range table.Columns {
				args = append(args, row.Get(c.Name).sqlArg())
			}
		}
		if err := tx.Exec(prefix+strings.Join(values, ", "), args...).Error; err != nil {
			return err
		}
	}
	return nil
}

// LastLoad returns the most recent bulk replace, or nil if the table was never loaded.
func (s *Store) LastLoad(ctx context.Context) (*Load, error) {
	var load Load
	err := s.db.WithContext(ctx).Order("id DESC").Take(&load).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last load: %w", err)
	}
	return &load, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
