package render

import "fmt"

// LayoutError reports a render tree that cannot be laid out with the
// supplied fonts or styles.
type LayoutError struct {
	Message string
}

func (e *LayoutError) Error() string {
	return "layout: " + e.Message
}

func layoutErrorf(format string, args ...any) error {
	return &LayoutError{Message: fmt.Sprintf(format, args...)}
}

// RasterError reports a scene that could not be converted to pixels.
type RasterError struct {
	Message string
	Err     error
}

func (e *RasterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("raster: %s: %v", e.Message, e.Err)
	}
	return "raster: " + e.Message
}

func (e *RasterError) Unwrap() error {
	return e.Err
}
