package chart

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/ritzau/mfa-dashboard/pkg/emissions"
	"github.com/ritzau/mfa-dashboard/pkg/flow"
	"github.com/ritzau/mfa-dashboard/pkg/workbook"
)

func TestBuildSankey(t *testing.T) {
	network, err := flow.BuildLinks(workbook.Sample())
	if err != nil {
		t.Fatal(err)
	}

	scaled := flow.Scale(network.Indexed, 0.5)
	spec := BuildSankey("MFA", network, scaled)

	if len(spec.Node.Label) != network.Index.Len() {
		t.Errorf("expected %d labels, got %d", network.Index.Len(), len(spec.Node.Label))
	}
	if len(spec.Link.Source) != len(scaled) || len(spec.Link.Target) != len(scaled) || len(spec.Link.Value) != len(scaled) {
		t.Fatalf("link arrays have mismatched lengths")
	}
	if spec.Link.Value[0] != 50 {
		t.Errorf("expected first link value 50, got %v", spec.Link.Value[0])
	}
	if spec.Node.Pad != 15 || spec.Node.Thickness != 20 || spec.Node.Color != "green" {
		t.Errorf("unexpected node style %+v", spec.Node)
	}
}

func TestBuildHistogram(t *testing.T) {
	table := emissions.Derive(workbook.Sample(), "industry", emissions.DefaultBaseline, 0.5)
	spec := BuildHistogram("Industry Emissions", table)

	wantCategories := []string{"input", "output", "waste"}
	if len(spec.Categories) != len(wantCategories) {
		t.Fatalf("expected categories %v, got %v", wantCategories, spec.Categories)
	}
	for i := range wantCategories {
		if spec.Categories[i] != wantCategories[i] {
			t.Errorf("category %d = %s, want %s", i, spec.Categories[i], wantCategories[i])
		}
	}

	if len(spec.Series) != 2 {
		t.Fatalf("expected 2 series, got %d", len(spec.Series))
	}
	original, modified := spec.Series[0], spec.Series[1]
	if original.Name != "original" || modified.Name != "modified" {
		t.Errorf("unexpected series order %s, %s", original.Name, modified.Name)
	}

	wantOriginal := []float64{185, 60, 75}
	wantModified := []float64{92.5, 30, 37.5}
	for i := range wantOriginal {
		if original.Values[i] != wantOriginal[i] {
			t.Errorf("original[%d] = %v, want %v", i, original.Values[i], wantOriginal[i])
		}
		if modified.Values[i] != wantModified[i] {
			t.Errorf("modified[%d] = %v, want %v", i, modified.Values[i], wantModified[i])
		}
	}

	if spec.BarMode != "group" || spec.HistFunc != "sum" || spec.Height != 400 {
		t.Errorf("unexpected layout %s/%s/%d", spec.BarMode, spec.HistFunc, spec.Height)
	}
}

func TestBuildHistogramEmpty(t *testing.T) {
	spec := BuildHistogram("Government Emissions", nil)
	if len(spec.Categories) != 0 || len(spec.Series) != 0 {
		t.Errorf("expected an empty histogram, got %+v", spec)
	}
}

func TestWritePNG(t *testing.T) {
	table := emissions.Derive(workbook.Sample(), "government", emissions.DefaultBaseline, 0.3)

	var buf bytes.Buffer
	if err := WritePNG(&buf, BuildHistogram("Government Emissions", table)); err != nil {
		t.Fatalf("WritePNG() error = %v", err)
	}

	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("output is not a PNG")
	}
}

func TestWritePNGEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, BuildHistogram("Empty", nil)); err != nil {
		t.Fatalf("WritePNG() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected an image even without data")
	}
}

func TestParseHex(t *testing.T) {
	if got := parseHex("#EF553B"); got != (color.RGBA{R: 0xEF, G: 0x55, B: 0x3B, A: 255}) {
		t.Errorf("parseHex() = %v", got)
	}
	if got := parseHex("red"); got != (color.Gray{Y: 128}) {
		t.Errorf("expected grey fallback, got %v", got)
	}
}
