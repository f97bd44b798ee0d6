// Package importer implements the entity importers the batch import engine
// drives: affiliates and coupons. Each importer registers itself with the
// core registry at init; blank-import this package to make them available.
package importer

import (
	"fmt"

	"github.com/JonMunkholm/stepimport/internal/core"
)

// reject builds the error returned for a row the importer declines.
func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrImporterRejected, fmt.Sprintf(format, args...))
}
