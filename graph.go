package hmax

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/awalterschulze/gographviz"
	"github.com/pkg/errors"
)

type dotNode struct {
	Name  string
	Kind  string
	Sizes []int
	Depth int
	Extra string
}

// ToDot renders the layers of the pyramid described by the config as a graphviz graph.
func (conf Config) ToDot() string {
	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		panic(err)
	}
	g.SetDir(true)

	// labels and attributes are constant, errors here are bugs
	add := func(n dotNode) {
		label, err := n.label()
		if err != nil {
			panic(err)
		}
		attrs := map[string]string{
			"fontname": "Monaco",
			"shape":    "none",
			"label":    label,
		}
		if err = g.AddNode("G", n.Name, attrs); err != nil {
			panic(err)
		}
	}
	edge := func(from, to string) {
		if err := g.AddEdge(from, to, true, nil); err != nil {
			panic(err)
		}
	}

	pairs := func(n int) int { return (n + 1) / 2 }
	windows := func(n int) []int {
		retVal := make([]int, pairs(n))
		for i := range retVal {
			retVal[i], _ = conf.Pool.Window(i)
		}
		return retVal
	}
	c1Scales := pairs(len(conf.S1Sizes))

	add(dotNode{Name: "image", Kind: "Image", Extra: fmt.Sprintf("at least %dx%d", conf.MinImageSize(), conf.MinImageSize())})
	add(dotNode{Name: "S1", Kind: "Gabor", Sizes: conf.S1Sizes, Depth: conf.Orientations})
	add(dotNode{Name: "C1", Kind: "Max pool", Sizes: windows(len(conf.S1Sizes)), Depth: conf.Orientations})
	add(dotNode{Name: "S2", Kind: "Sparse NCC", Sizes: []int{conf.S2.Size}, Depth: conf.S2.Count, Extra: fmt.Sprintf("%d kept", conf.S2.Kept)})
	add(dotNode{Name: "C2", Kind: "Max pool", Sizes: windows(c1Scales), Depth: conf.S2.Count})
	add(dotNode{Name: "S3", Kind: "Sparse NCC", Sizes: []int{conf.S3.Size}, Depth: conf.S3.Count, Extra: fmt.Sprintf("%d kept", conf.S3.Kept)})
	add(dotNode{Name: "G3", Kind: "Global max", Depth: conf.S3.Count})
	add(dotNode{Name: "features", Kind: "Feature vector", Depth: conf.FeatureLen()})

	edge("image", "S1")
	edge("S1", "C1")
	edge("C1", "S2")
	edge("S2", "C2")
	edge("C2", "S3")
	edge("S3", "G3")
	for _, rf := range conf.S2bSizes {
		s := fmt.Sprintf("S2b_%d", rf)
		gm := fmt.Sprintf("G2b_%d", rf)
		add(dotNode{Name: s, Kind: "Sparse NCC", Sizes: []int{rf}, Depth: conf.S2bCount, Extra: fmt.Sprintf("%d kept", conf.S2bKept)})
		add(dotNode{Name: gm, Kind: "Global max", Depth: conf.S2bCount})
		edge("C1", s)
		edge(s, gm)
		edge(gm, "features")
	}
	edge("G3", "features")
	return g.String()
}

// label renders the HTML table shown for the node.
func (n dotNode) label() (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, n); err != nil {
		return "", errors.Wrapf(err, "unable to render the label of %s", n.Name)
	}
	return buf.String(), nil
}

const tmplRaw = `<
<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0">
<TR><TD>Layer</TD><TD>{{.Name}}</TD></TR>
<TR><TD>Kind</TD><TD>{{.Kind}}</TD></TR>
{{if .Sizes}}<TR><TD>RF</TD><TD>{{.Sizes}}</TD></TR>{{end}}
{{if .Depth}}<TR><TD>Channels</TD><TD>{{.Depth}}</TD></TR>{{end}}
{{if .Extra}}<TR><TD>Note</TD><TD>{{.Extra}}</TD></TR>{{end}}
</TABLE>
>
`

var tmpl *template.Template

func init() {
	tmpl = template.Must(template.New("name").Parse(tmplRaw))
}
