package main

import (
	"flag"
	"os"

	"github.com/m-lab/go/cloud/bqx"
	"github.com/m-lab/go/rtx"
	"github.com/netgauge/netgauge/pkg/results"

	"cloud.google.com/go/bigquery"
)

var netgaugeSchema string

func init() {
	flag.StringVar(&netgaugeSchema, "netgauge", "/var/spool/datatypes/netgauge.json", "filename to write netgauge schema")
}

func main() {
	flag.Parse()
	// Generate and save the schema for autoloading.
	record := results.ArchivalRecord{}
	sch, err := bigquery.InferSchema(record)
	rtx.Must(err, "failed to generate netgauge schema")
	sch = bqx.RemoveRequired(sch)
	b, err := sch.ToJSONFields()
	rtx.Must(err, "failed to marshal netgauge schema")
	err = os.WriteFile(netgaugeSchema, b, 0o644)
	rtx.Must(err, "failed to write netgauge schema")
}
