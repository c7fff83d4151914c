/*
Copyright (C) 2025 [GrainArc]

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package GoOverlay

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteBatchSize = 1000

// SQLiteWriter 将要素写入SQLite表：fid主键、WKB几何列加属性列，
// 图层元数据和字段定义分别写入 layer_metadata 与 layer_fields。
type SQLiteWriter struct {
	db    *sql.DB
	tx    *sql.Tx
	stmt  *sql.Stmt
	table string
	spec  SinkSpec
	// columns 每个字段在表中的列名，与字段名不同时记录在 layer_fields.column_name
	columns []string

	pending int
	count   int
	closed  bool
}

// NewSQLiteWriter 创建数据库文件、建表并开启第一个写入事务
func NewSQLiteWriter(filePath string, spec SinkSpec) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, fmt.Errorf("打开SQLite文件失败: %v", err)
	}
	db.SetMaxOpenConns(1)

	w := &SQLiteWriter{db: db, table: layerNameFromPath(filePath), spec: spec, columns: sqliteColumnNames(spec.Fields)}
	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	if err := w.writeMetadata(); err != nil {
		db.Close()
		return nil, err
	}
	if err := w.begin(); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// sqliteColumnNames 为字段分配表列名：SQLite列名不区分大小写，
// 与fid、geom或已分配列名冲突的字段加 _N 后缀
func sqliteColumnNames(fields Fields) []string {
	used := map[string]bool{"fid": true, "geom": true}
	columns := make([]string, len(fields))
	for i, f := range fields {
		base := f.Name
		if base == "" {
			base = fmt.Sprintf("field_%d", i+1)
		}
		name := base
		for n := 1; used[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[strings.ToLower(name)] = true
		columns[i] = name
	}
	return columns
}

func (w *SQLiteWriter) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS layer_metadata (
			table_name TEXT PRIMARY KEY,
			geometry_type TEXT,
			crs TEXT,
			encoding TEXT,
			feature_count INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS layer_fields (
			table_name TEXT,
			position INTEGER,
			name TEXT,
			column_name TEXT,
			type TEXT,
			width INTEGER,
			precision INTEGER,
			PRIMARY KEY (table_name, position)
		)`,
		fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(w.table)),
	}

	columns := []string{"fid INTEGER PRIMARY KEY", "geom BLOB"}
	for i, f := range w.spec.Fields {
		columns = append(columns, fmt.Sprintf("%s %s", quoteIdent(w.columns[i]), mapFieldTypeToSQLite(f.Type, f.Width, f.Precision)))
	}
	statements = append(statements, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(w.table), strings.Join(columns, ", ")))

	for _, stmt := range statements {
		if _, err := w.db.Exec(stmt); err != nil {
			return fmt.Errorf("创建SQLite表失败: %v", err)
		}
	}
	return nil
}

func (w *SQLiteWriter) writeMetadata() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("开启元数据事务失败: %v", err)
	}
	defer tx.Rollback()

	encoding := w.spec.Encoding
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO layer_metadata (table_name, geometry_type, crs, encoding, feature_count) VALUES (?, ?, ?, ?, 0)`,
		w.table, w.spec.GeometryType.String(), w.spec.CRS, encoding); err != nil {
		return fmt.Errorf("写入图层元数据失败: %v", err)
	}
	if _, err := tx.Exec(`DELETE FROM layer_fields WHERE table_name = ?`, w.table); err != nil {
		return fmt.Errorf("清理字段定义失败: %v", err)
	}
	for i, f := range w.spec.Fields {
		if _, err := tx.Exec(`INSERT INTO layer_fields (table_name, position, name, column_name, type, width, precision) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			w.table, i, f.Name, w.columns[i], f.Type.String(), f.Width, f.Precision); err != nil {
			return fmt.Errorf("写入字段定义 %s 失败: %v", f.Name, err)
		}
	}
	return tx.Commit()
}

func (w *SQLiteWriter) begin() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("开启写入事务失败: %v", err)
	}

	columns := []string{"fid", "geom"}
	placeholders := []string{"?", "?"}
	for _, column := range w.columns {
		columns = append(columns, quoteIdent(column))
		placeholders = append(placeholders, "?")
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(w.table), strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	stmt, err := tx.Prepare(query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("准备插入语句失败: %v", err)
	}
	w.tx = tx
	w.stmt = stmt
	w.pending = 0
	return nil
}

func (w *SQLiteWriter) commit() error {
	if w.stmt != nil {
		w.stmt.Close()
		w.stmt = nil
	}
	if w.tx == nil {
		return nil
	}
	err := w.tx.Commit()
	w.tx = nil
	if err != nil {
		return fmt.Errorf("提交写入事务失败: %v", err)
	}
	return nil
}

// AddFeature 插入一个要素，每累计一批提交一次事务
func (w *SQLiteWriter) AddFeature(f *Feature) error {
	if w.closed {
		return fmt.Errorf("SQLite输出已关闭")
	}
	if f == nil {
		return fmt.Errorf("要素为空")
	}

	args := make([]any, 0, len(w.spec.Fields)+2)
	if f.ID > 0 {
		args = append(args, f.ID)
	} else {
		args = append(args, nil)
	}
	geomWKB, err := f.Geometry.WKB()
	if err != nil {
		return err
	}
	if geomWKB == nil {
		args = append(args, nil)
	} else {
		args = append(args, geomWKB)
	}
	for i, field := range w.spec.Fields {
		args = append(args, convertFieldValue(f.Attributes.Value(i), field.Type))
	}

	if _, err := w.stmt.Exec(args...); err != nil {
		return fmt.Errorf("插入要素 %d 失败: %v", f.ID, err)
	}
	w.count++
	w.pending++

	if w.pending >= sqliteBatchSize {
		if err := w.commit(); err != nil {
			return err
		}
		return w.begin()
	}
	return nil
}

// Close 提交剩余数据，更新要素数并关闭数据库
func (w *SQLiteWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.commit(); err != nil {
		w.db.Close()
		return err
	}
	if _, err := w.db.Exec(`UPDATE layer_metadata SET feature_count = ? WHERE table_name = ?`, w.count, w.table); err != nil {
		w.db.Close()
		return fmt.Errorf("更新要素数失败: %v", err)
	}
	return w.db.Close()
}

// ReadSQLiteFile 读取SQLite表为内存图层。table为空时读取layer_metadata中的第一个图层。
// 没有字段定义记录的表按PRAGMA table_info推断字段类型。
func ReadSQLiteFile(filePath, table string) (*MemoryLayer, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("SQLite文件不可用: %v", err)
	}
	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, fmt.Errorf("打开SQLite文件失败: %v", err)
	}
	defer db.Close()

	hasMetadata, err := sqliteTableExists(db, "layer_metadata")
	if err != nil {
		return nil, err
	}
	if table == "" {
		if !hasMetadata {
			return nil, fmt.Errorf("文件中没有图层元数据，需要指定表名")
		}
		if err := db.QueryRow(`SELECT table_name FROM layer_metadata ORDER BY rowid LIMIT 1`).Scan(&table); err != nil {
			return nil, fmt.Errorf("查找图层失败: %v", err)
		}
	}

	geomType, crs, encoding := GeomUnknown, "", DefaultEncoding
	if hasMetadata {
		var geomTypeName string
		err = db.QueryRow(`SELECT geometry_type, crs, encoding FROM layer_metadata WHERE table_name = ?`, table).Scan(&geomTypeName, &crs, &encoding)
		switch {
		case err == nil:
			geomType = ParseGeomType(geomTypeName)
		case errors.Is(err, sql.ErrNoRows):
		default:
			return nil, fmt.Errorf("读取图层元数据失败: %v", err)
		}
	}

	fields, fieldColumns, err := readSQLiteFields(db, table, hasMetadata)
	if err != nil {
		return nil, err
	}

	columns := []string{"fid", "geom"}
	for _, column := range fieldColumns {
		columns = append(columns, quoteIdent(column))
	}
	rows, err := db.Query(fmt.Sprintf("SELECT %s FROM %s ORDER BY fid", strings.Join(columns, ", "), quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("查询图层 %s 失败: %v", table, err)
	}
	defer rows.Close()

	layer := CreateMemoryLayer(table, geomType, crs, fields)
	layer.SetEncoding(encoding)

	for rows.Next() {
		var fid int64
		var geomWKB []byte
		values := make([]any, len(fields))
		dest := []any{&fid, &geomWKB}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("读取要素失败: %v", err)
		}

		var geometry *Geometry
		if len(geomWKB) > 0 {
			geometry, err = GeometryFromWKB(geomWKB)
			if err != nil {
				return nil, fmt.Errorf("要素 %d: %v", fid, err)
			}
		}
		attrs := make(Attributes, len(fields))
		for i, f := range fields {
			attrs[i] = normalizeFieldValue(values[i], f.Type)
		}
		if err := layer.AddFeature(&Feature{ID: fid, Geometry: geometry, Attributes: attrs}); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历要素失败: %v", err)
	}
	return layer, nil
}

func sqliteTableExists(db *sql.DB, table string) (bool, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n); err != nil {
		return false, fmt.Errorf("读取表结构失败: %v", err)
	}
	return n > 0, nil
}

// readSQLiteFields 返回字段定义和对应的表列名
func readSQLiteFields(db *sql.DB, table string, hasMetadata bool) (Fields, []string, error) {
	var fields Fields
	var columns []string
	if hasMetadata {
		rows, err := db.Query(`SELECT name, COALESCE(column_name, name), type, width, precision FROM layer_fields WHERE table_name = ? ORDER BY position`, table)
		if err != nil {
			return nil, nil, fmt.Errorf("读取字段定义失败: %v", err)
		}
		defer rows.Close()
		for rows.Next() {
			var f Field
			var column, typeName string
			if err := rows.Scan(&f.Name, &column, &typeName, &f.Width, &f.Precision); err != nil {
				return nil, nil, fmt.Errorf("读取字段定义失败: %v", err)
			}
			f.Type = ParseFieldType(typeName)
			fields = append(fields, f)
			columns = append(columns, column)
		}
		if err := rows.Err(); err != nil {
			return nil, nil, fmt.Errorf("读取字段定义失败: %v", err)
		}
		if len(fields) > 0 {
			return fields, columns, nil
		}
	}

	info, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, nil, fmt.Errorf("读取表结构失败: %v", err)
	}
	defer info.Close()
	for info.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := info.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, nil, fmt.Errorf("读取表结构失败: %v", err)
		}
		if strings.EqualFold(name, "fid") || strings.EqualFold(name, "geom") {
			continue
		}
		fieldType, width, precision := mapSQLiteTypeToField(colType)
		fields = append(fields, Field{Name: name, Type: fieldType, Width: width, Precision: precision})
		columns = append(columns, name)
	}
	return fields, columns, info.Err()
}
