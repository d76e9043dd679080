// Package ssh is a placeholder FileSystem back-end for a raw SSH file
// transport (as distinct from sftp's protocol-level client). Wiring a
// real SSH client is out of scope here (spec §1 excludes wire-level
// transports); New exists so callers get a clear, typed error rather
// than an unknown-adaptor lookup miss.
package ssh

import (
	"xenon/config"
	"xenon/xenonerr"
	"xenon/xenonfs"
)

// AdaptorName identifies this back-end in generated errors.
const AdaptorName = "ssh"

// New always fails with UnsupportedOperation: no SSH client library is
// wired into this module.
func New(location string, properties *config.Properties) (*xenonfs.Engine, error) {
	return nil, xenonerr.New(AdaptorName, xenonerr.UnsupportedOperation, "ssh adaptor has no transport wired")
}
