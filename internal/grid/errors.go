package grid

import "errors"

// ErrBlankImage is raised when a requested region lies entirely outside the
// grid's world bbox coverage.
var ErrBlankImage = errors.New("grid: requested region has no tiles")

// ErrInvalidBBox is raised when GetAffectedTiles is given a malformed or
// degenerate bbox.
var ErrInvalidBBox = errors.New("grid: invalid bbox")
