package insights

import (
	"context"
	"errors"

	"github.com/vinodismyname/biofarmaka/internal/ingest"
	"github.com/vinodismyname/biofarmaka/internal/security"
	"github.com/vinodismyname/biofarmaka/internal/tables"
	"github.com/vinodismyname/biofarmaka/pkg/mcperr"
)

// ErrCursorStale indicates a cursor was issued for another snapshot.
var ErrCursorStale = errors.New("insights: cursor refers to a previous snapshot")

var errorCodes = []mcperr.Mapping{
	{Err: security.ErrNotAllowed, Code: mcperr.PermissionDenied},
	{Err: tables.ErrUnsupportedFormat, Code: mcperr.UnsupportedFormat},
	{Err: security.ErrUnsupportedExtension, Code: mcperr.UnsupportedFormat},
	{Err: ingest.ErrPrimaryUnavailable, Code: mcperr.LoadFailed},
	{Err: ErrClusterUnavailable, Code: mcperr.ClusterUnavailable},
	{Err: ErrNoData, Code: mcperr.NoData},
	{Err: ErrUnknownYear, Code: mcperr.UnknownSelection},
	{Err: ErrUnknownRegion, Code: mcperr.UnknownSelection},
	{Err: ErrUnknownCrop, Code: mcperr.UnknownSelection},
	{Err: ErrCursorStale, Code: mcperr.CursorInvalid},
	{Err: context.DeadlineExceeded, Code: mcperr.Timeout},
}

// Classify maps an error returned by the service to its catalog code.
func Classify(err error) mcperr.Code {
	return mcperr.Classify(err, mcperr.AnalysisFailed, errorCodes...)
}
