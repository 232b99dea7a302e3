package core

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// scanner handles reflection-based scanning of SQL rows into structs.
// Struct metadata is cached per type.
type scanner struct {
	mu    sync.RWMutex
	cache map[reflect.Type]*structInfo
}

// structInfo contains cached metadata about a struct type.
type structInfo struct {
	byColumn map[string]*fieldInfo
}

// fieldInfo describes how to scan into a struct field.
type fieldInfo struct {
	index  []int  // field index path for embedded structs
	dbName string // column name from db:"" tag or lowercased field name
}

// globalScanner is the process-wide scanner instance.
var globalScanner = &scanner{cache: make(map[reflect.Type]*structInfo)}

// getStructInfo returns cached struct metadata, building it on first use.
func (s *scanner) getStructInfo(typ reflect.Type) *structInfo {
	s.mu.RLock()
	info, ok := s.cache[typ]
	s.mu.RUnlock()
	if ok {
		return info
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.cache[typ]; ok {
		return info
	}

	info = &structInfo{byColumn: make(map[string]*fieldInfo)}
	collectFields(typ, nil, info)
	s.cache[typ] = info
	return info
}

// collectFields walks exported fields, following embedded structs.
func collectFields(typ reflect.Type, index []int, info *structInfo) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}

		path := append(append([]int(nil), index...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collectFields(field.Type, path, info)
			continue
		}

		name := field.Tag.Get("db")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(field.Name)
		}
		if _, exists := info.byColumn[name]; !exists {
			info.byColumn[name] = &fieldInfo{index: path, dbName: name}
		}
	}
}

// scanRow scans the current row of rows into dest. A pointer to a struct
// is matched column-by-column; any other pointer is scanned as a single
// column value.
func (s *scanner) scanRow(rows *sql.Rows, dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("memora: scan destination must be a non-nil pointer, got %T", dest)
	}

	elem := v.Elem()
	if elem.Kind() != reflect.Struct || isScannerType(elem.Type()) {
		return rows.Scan(dest)
	}

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	info := s.getStructInfo(elem.Type())
	targets := make([]interface{}, len(columns))

	for i, col := range columns {
		fi, ok := info.byColumn[col]
		if !ok {
			targets[i] = new(interface{}) // column without a matching field is discarded
			continue
		}
		targets[i] = elem.FieldByIndex(fi.index).Addr().Interface()
	}

	return rows.Scan(targets...)
}

// scanRows scans all rows into dest, a pointer to a slice of structs or of
// struct pointers.
func (s *scanner) scanRows(rows *sql.Rows, dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("memora: scan destination must be a non-nil pointer to a slice, got %T", dest)
	}

	slice := v.Elem()
	if slice.Kind() != reflect.Slice {
		return fmt.Errorf("memora: scan destination must point to a slice, got %T", dest)
	}

	elemType := slice.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	if isPtr {
		elemType = elemType.Elem()
	}

	for rows.Next() {
		item := reflect.New(elemType)
		if err := s.scanRow(rows, item.Interface()); err != nil {
			return err
		}
		if isPtr {
			slice.Set(reflect.Append(slice, item))
		} else {
			slice.Set(reflect.Append(slice, item.Elem()))
		}
	}

	return rows.Err()
}

// isScannerType reports whether the type implements sql.Scanner itself and
// should therefore be scanned directly rather than field-by-field.
func isScannerType(typ reflect.Type) bool {
	scannerType := reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	return reflect.PtrTo(typ).Implements(scannerType)
}
