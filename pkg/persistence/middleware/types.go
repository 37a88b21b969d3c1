// Package middleware wraps report archives with storage-side behaviour:
// sealing recordings at rest and redacting sensitive text before it is kept.
package middleware

import "github.com/aretw0/vitrine/pkg/ports"

// Middleware allows wrapping a ReportArchive to add behavior.
type Middleware func(ports.ReportArchive) ports.ReportArchive

// Chain applies mws to archive. The first middleware is the outermost.
func Chain(archive ports.ReportArchive, mws ...Middleware) ports.ReportArchive {
	for i := len(mws) - 1; i >= 0; i-- {
		archive = mws[i](archive)
	}
	return archive
}
