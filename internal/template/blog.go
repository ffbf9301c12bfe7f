package template

import (
	"errors"

	"ogpimage/internal/font"
	"ogpimage/internal/render"
)

const blogSite = "kq5.jp"

// Blog draws a post card: slug, title and date on a translucent panel.
func Blog(d Data) (*render.Node, error) {
	if d.Post == nil {
		return nil, errors.New("blog template needs a post")
	}
	p := d.Post

	return render.Box(render.Style{
		Direction:  render.Column,
		Align:      render.AlignCenter,
		Justify:    render.JustifyCenter,
		Background: "linear-gradient(to bottom right, #13161b, #131217)",
		Color:      "#eee",
		FontFamily: d.FontFamily,
	},
		render.Box(render.Style{
			Absolute:   true,
			Inset:      render.Uniform(60),
			Radius:     30,
			Background: "rgba(33,36,56,.8)",
			Direction:  render.Column,
			Padding:    render.Uniform(40),
			Gap:        20,
		},
			render.Text(render.Style{FontSize: 36, Color: "#aaa"}, "/"+p.Slug),
			render.Text(render.Style{FontSize: 70, FontWeight: font.Bold, Grow: 1}, p.Title),
			render.Box(render.Style{
				FontSize:   45,
				FontWeight: font.Bold,
				Color:      "#ccc",
				Justify:    render.JustifySpaceBetween,
			},
				render.Text(render.Style{}, p.Date),
				render.Text(render.Style{}, blogSite),
			),
		),
	), nil
}
