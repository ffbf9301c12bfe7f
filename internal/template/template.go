// Package template holds the declarative render trees for each image type.
package template

import (
	"fmt"

	"ogpimage/internal/feed"
	"ogpimage/internal/render"
)

// Data is what a template may draw from.
type Data struct {
	// Params are the validated request parameters.
	Params map[string]string
	// Post is set for sources backed by a metadata resolver.
	Post *feed.PostRecord
	// FontFamily is the CSS font-family list of the loaded fonts.
	FontFamily string
}

// Func builds the render tree for one image.
type Func func(Data) (*render.Node, error)

var registry = map[string]Func{
	"blog":  Blog,
	"tools": Tools,
}

// Lookup finds a template by name.
func Lookup(name string) (Func, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", name)
	}
	return fn, nil
}
