// Package persistence writes archival records to disk as JSON data
// files grouped by datatype and date.
package persistence

import (
	"encoding/json"
	"errors"
	"os"
	"path"
	"time"

	"github.com/netgauge/netgauge/pkg/results"
)

// Datatype is the datatype component of every archival path written by
// this package.
const Datatype = "netgauge"

// DataFile describes a data file written to disk.
type DataFile struct {
	// Prefix is the root directory the file was written under.
	Prefix string
	// Datatype is the datatype component of the path.
	Datatype string
	// Subtest is the subtest component of the filename.
	Subtest string
	// UUID is the unique identifier of the archived measurement.
	UUID string
	// Path is the complete path of the written file.
	Path string
	// Size is the number of bytes written.
	Size int
}

// WriteDataFile marshals result to JSON and writes it to a new file
// under prefix, grouped by datatype and date. Existing files are never
// overwritten. The returned DataFile describes the written file.
func WriteDataFile(prefix, datatype, subtest, uuid string, result interface{}) (*DataFile, error) {
	timestamp := time.Now()
	dir := path.Join(prefix, datatype, timestamp.Format("2006/01/02"))
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}
	filepath := path.Join(dir, datatype+"-"+subtest+"-"+
		timestamp.Format("20060102T150405.000000000Z")+"."+uuid+".json")
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	fp, err := os.OpenFile(filepath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	_, err = fp.Write(data)
	if err != nil {
		fp.Close()
		return nil, err
	}
	err = fp.Close()
	if err != nil {
		return nil, err
	}
	return &DataFile{
		Prefix:   prefix,
		Datatype: datatype,
		Subtest:  subtest,
		UUID:     uuid,
		Path:     filepath,
		Size:     len(data),
	}, nil
}

// Archive writes rec under dir as a dated JSON data file named after
// the record's profile and measurement ID.
func Archive(dir string, rec *results.ArchivalRecord) (*DataFile, error) {
	if rec == nil {
		return nil, errors.New("nil archival record")
	}
	if rec.Result.ID == "" {
		return nil, errors.New("archival record without a measurement ID")
	}
	return WriteDataFile(dir, Datatype, rec.Profile, rec.Result.ID, rec)
}
