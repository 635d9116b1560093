package milestone

import "errors"

var ErrInvalidCatalog = errors.New("invalid milestone catalog")
