package template

import (
	"ogpimage/internal/font"
	"ogpimage/internal/render"
)

const toolsBanner = "/*** tools.t3x.jp ***/"

// Tools draws "cat.slug" and the tool title centered on a dark panel.
func Tools(d Data) (*render.Node, error) {
	return render.Box(render.Style{
		Direction:  render.Column,
		Align:      render.AlignCenter,
		Justify:    render.JustifyCenter,
		Background: "linear-gradient(0deg, #0f0c38, #030221)",
		Color:      "#eee",
		FontFamily: d.FontFamily,
		TextAlign:  render.TextCenter,
	},
		render.Box(render.Style{
			Absolute:   true,
			Inset:      render.Uniform(50),
			Radius:     50,
			Background: "#5a596b45",
			Direction:  render.Column,
			Align:      render.AlignCenter,
			Justify:    render.JustifyCenter,
			Gap:        80,
		},
			render.Text(render.Style{FontSize: 48, Color: "#bbb"}, toolsBanner),
			render.Text(render.Style{FontSize: 90, FontWeight: font.Bold}, d.Params["cat"]+"."+d.Params["slug"]),
			render.Text(render.Style{FontSize: 60, FontWeight: font.Bold, Color: "#ddd"}, d.Params["title"]),
		),
	), nil
}
