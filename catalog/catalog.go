// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package catalog maintains a queryable sqlite index of collection results.
// The catalog is written next to the archive, it is a convenience for
// inspecting runs with plain sql and not part of the evidentiary record.
package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"crawshaw.io/sqlite"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/forensicanalysis/forensiccollect/auditlog"
)

const catalogVersion = 1
const catalogApplicationID = 1718184803

// Catalog is a sqlite database with one results table.
type Catalog struct {
	conn *sqlite.Conn
}

// New creates a catalog database at path.
func New(path string) (*Catalog, error) {
	conn, err := sqlite.OpenConn(path, 0)
	if err != nil {
		return nil, err
	}

	catalog := &Catalog{conn: conn}
	if err := setPragma(conn, "application_id", catalogApplicationID); err != nil {
		return nil, err
	}
	if err := setPragma(conn, "user_version", catalogVersion); err != nil {
		return nil, err
	}

	err = catalog.exec("CREATE TABLE IF NOT EXISTS `results` " +
		"(id TEXT PRIMARY KEY, json TEXT, insert_time TEXT)")
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

// Open opens an existing catalog and checks its file format.
func Open(path string) (*Catalog, error) {
	conn, err := sqlite.OpenConn(path, 0)
	if err != nil {
		return nil, err
	}

	applicationID, err := pragma(conn, "application_id")
	if err != nil {
		return nil, err
	}
	if applicationID != catalogApplicationID {
		msg := "wrong file format (application_id is %d, requires %d)"
		return nil, fmt.Errorf(msg, applicationID, catalogApplicationID)
	}

	return &Catalog{conn: conn}, nil
}

// Insert adds a single audit record.
func (c *Catalog) Insert(record auditlog.Record) (string, error) {
	line, err := record.Rendered()
	if err != nil {
		return "", err
	}

	id := "result--" + uuid.New().String()

	stmt, err := c.conn.Prepare("INSERT INTO `results` (id, json, insert_time) VALUES ($id, $json, $time)")
	if err != nil {
		return "", errors.Wrap(err, "could not prepare insert")
	}
	stmt.SetText("$id", id)
	stmt.SetText("$json", string(line))
	stmt.SetText("$time", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	if _, err := stmt.Step(); err != nil {
		return "", errors.Wrap(err, "could not insert record")
	}
	return id, stmt.Finalize()
}

// InsertBatch adds a list of audit records.
func (c *Catalog) InsertBatch(records []auditlog.Record) ([]string, error) {
	var ids []string
	for _, record := range records {
		id, err := c.Insert(record)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Select returns the records with the given status in insert order.
func (c *Catalog) Select(status string) ([]auditlog.Record, error) {
	stmt, err := c.conn.Prepare(
		"SELECT json FROM `results` WHERE json_extract(json, '$.status') = $status ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$status", status)
	return c.rowsToRecords(stmt)
}

// All returns every record in insert order.
func (c *Catalog) All() ([]auditlog.Record, error) {
	stmt, err := c.conn.Prepare("SELECT json FROM `results` ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	return c.rowsToRecords(stmt)
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.conn.Close()
}

func (c *Catalog) rowsToRecords(stmt *sqlite.Stmt) ([]auditlog.Record, error) {
	records := []auditlog.Record{}
	for {
		if hasRow, err := stmt.Step(); err != nil {
			return nil, err
		} else if !hasRow {
			break
		}
		var record auditlog.Record
		if err := json.Unmarshal([]byte(stmt.GetText("json")), &record); err != nil {
			return nil, errors.Wrap(err, "malformed catalog record")
		}
		records = append(records, record)
	}
	return records, stmt.Finalize()
}

func (c *Catalog) exec(query string) error {
	stmt, err := c.conn.Prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Step()
	if err != nil {
		return err
	}

	return stmt.Finalize()
}

func pragma(conn *sqlite.Conn, name string) (int64, error) {
	stmt, err := conn.Prepare("PRAGMA " + name)
	if err != nil {
		return 0, err
	}
	_, err = stmt.Step()
	if err != nil {
		return 0, err
	}
	i := stmt.GetInt64(name)
	return i, stmt.Finalize()
}

func setPragma(conn *sqlite.Conn, name string, i int64) error {
	stmt, err := conn.Prepare("PRAGMA " + name + " = " + fmt.Sprint(i))
	if err != nil {
		return err
	}
	_, err = stmt.Step()
	if err != nil {
		return err
	}
	return stmt.Finalize()
}
