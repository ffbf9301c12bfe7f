package render

import (
	"fmt"
	"strings"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/opentype"

	"ogpimage/internal/font"
)

// FaceSource hands out sized font faces by exact family and weight.
type FaceSource interface {
	Face(family string, weight font.Weight, size float64) (xfont.Face, error)
}

type faceID struct {
	family string
	weight font.Weight
}

type sizedFaceID struct {
	faceID
	size float64
}

// FontSet holds the parsed fonts of one render. Faces are not safe for
// concurrent use, so every render gets its own set.
type FontSet struct {
	fonts map[faceID]*opentype.Font
	names map[string]string
	faces map[sizedFaceID]xfont.Face
}

func NewFontSet() *FontSet {
	return &FontSet{
		fonts: map[faceID]*opentype.Font{},
		names: map[string]string{},
		faces: map[sizedFaceID]xfont.Face{},
	}
}

func (fs *FontSet) Add(family string, weight font.Weight, f *opentype.Font) {
	key := strings.ToLower(family)
	fs.names[key] = key
	fs.fonts[faceID{family: key, weight: weight}] = f
}

// match picks the first family of a CSS font-family list that is loaded.
func (fs *FontSet) match(list string) (string, bool) {
	for _, name := range strings.Split(list, ",") {
		name = strings.ToLower(strings.Trim(strings.TrimSpace(name), `"'`))
		if fam, ok := fs.names[name]; ok {
			return fam, true
		}
	}
	return "", false
}

func (fs *FontSet) Face(family string, weight font.Weight, size float64) (xfont.Face, error) {
	id := faceID{family: strings.ToLower(family), weight: weight}
	sid := sizedFaceID{faceID: id, size: size}
	if face, ok := fs.faces[sid]; ok {
		return face, nil
	}
	f, ok := fs.fonts[id]
	if !ok {
		return nil, fmt.Errorf("font %q weight %d is not loaded", family, weight)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: xfont.HintingNone})
	if err != nil {
		return nil, err
	}
	fs.faces[sid] = face
	return face, nil
}

func (fs *FontSet) Close() {
	for _, face := range fs.faces {
		face.Close()
	}
}

// ParseFonts builds a FontSet straight from font assets.
func ParseFonts(assets []font.Asset) (*FontSet, error) {
	fs := NewFontSet()
	for _, a := range assets {
		f, err := opentype.Parse(a.Data)
		if err != nil {
			return nil, layoutErrorf("parse font %q weight %d: %v", a.Family, a.Weight, err)
		}
		fs.Add(a.Family, a.Weight, f)
	}
	return fs, nil
}
