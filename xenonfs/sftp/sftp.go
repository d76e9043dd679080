// Package sftp is a placeholder FileSystem back-end for an SFTP
// transport. Wiring a real SFTP client is out of scope here (spec §1
// excludes wire-level transports); New exists so callers can detect
// the adaptor name and fail with a clear, typed error rather than an
// unknown-adaptor lookup miss.
package sftp

import (
	"xenon/config"
	"xenon/xenonerr"
	"xenon/xenonfs"
)

// AdaptorName identifies this back-end in generated errors.
const AdaptorName = "sftp"

// New always fails with UnsupportedOperation: no SFTP client library
// is wired into this module.
func New(location string, properties *config.Properties) (*xenonfs.Engine, error) {
	return nil, xenonerr.New(AdaptorName, xenonerr.UnsupportedOperation, "sftp adaptor has no transport wired")
}
