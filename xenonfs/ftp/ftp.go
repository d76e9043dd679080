// Package ftp is a placeholder FileSystem back-end for an FTP
// transport. Wiring a real FTP client is out of scope here (spec §1
// excludes wire-level transports); New exists so callers get a clear,
// typed error rather than an unknown-adaptor lookup miss.
package ftp

import (
	"xenon/config"
	"xenon/xenonerr"
	"xenon/xenonfs"
)

// AdaptorName identifies this back-end in generated errors.
const AdaptorName = "ftp"

// New always fails with UnsupportedOperation: no FTP client library is
// wired into this module.
func New(location string, properties *config.Properties) (*xenonfs.Engine, error) {
	return nil, xenonerr.New(AdaptorName, xenonerr.UnsupportedOperation, "ftp adaptor has no transport wired")
}
