// Package version contains the netgauge build version.
package version

// Version is the running binary's symbolic version. It is set at build
// time via -ldflags.
var Version string
