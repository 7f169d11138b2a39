package table

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseColumns(t *testing.T) {
	in := "# comment\nR,SigmaStellar,Note\n0.5,120.0,a\n1.0, 80.5,b\n1.5,nan,c\n"
	tb, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if tb.Len() != 3 {
		t.Fatalf("Len = %d, want 3", tb.Len())
	}
	r, err := tb.Float("R")
	if err != nil {
		t.Fatal(err)
	}
	if r[2] != 1.5 {
		t.Fatalf("R = %v", r)
	}
	s, _ := tb.Float("SigmaStellar")
	if s[1] != 80.5 || !math.IsNaN(s[2]) {
		t.Fatalf("SigmaStellar = %v", s)
	}
	note, _ := tb.Float("Note")
	if !math.IsNaN(note[0]) {
		t.Fatalf("non-numeric should be NaN, got %v", note[0])
	}
	if _, err := tb.Column("Vsys"); !errors.Is(err, ErrNoColumn) {
		t.Fatalf("err = %v, want ErrNoColumn", err)
	}
}

func TestParamTableCSV(t *testing.T) {
	p := NewParamTable([]string{"amplitude", "stddev"}, []string{"Params", "Errors"})
	if err := p.Set("amplitude", "Params", 0.5); err != nil {
		t.Fatal(err)
	}
	_ = p.Set("amplitude", "Errors", 0.01)
	_ = p.Set("stddev", "Params", 7.25)

	var buf bytes.Buffer
	if err := p.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}
	want := ",Params,Errors\namplitude,0.5,0.01\nstddev,7.25,\n"
	if buf.String() != want {
		t.Fatalf("csv =\n%q\nwant\n%q", buf.String(), want)
	}

	if err := p.Set("mean", "Params", 1); !errors.Is(err, ErrNoColumn) {
		t.Fatalf("err = %v, want ErrNoColumn", err)
	}
}

func TestParamTableLaTeX(t *testing.T) {
	p := NewParamTable([]string{"0.0-0.5"}, []string{"amplitude", "amplitude_stderr"})
	p.Values[0] = []float64{1, 0.125}

	var buf bytes.Buffer
	if err := p.WriteLaTeX(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, s := range []string{
		"\\begin{tabular}{lrr}",
		"{} & amplitude & amplitude\\_stderr \\\\",
		"0.0-0.5 & 1.000000 & 0.125000 \\\\",
		"\\end{tabular}",
	} {
		if !strings.Contains(out, s) {
			t.Fatalf("latex missing %q:\n%s", s, out)
		}
	}
}

func TestParamTableShape(t *testing.T) {
	p := &ParamTable{Index: []string{"a"}, Columns: []string{"x", "y"}, Values: [][]float64{{1}}}
	if err := p.WriteCSV(&bytes.Buffer{}); !errors.Is(err, ErrShape) {
		t.Fatalf("err = %v, want ErrShape", err)
	}
}

func TestSaveAndReadBack(t *testing.T) {
	dir := t.TempDir()
	p := NewParamTable([]string{"r1"}, []string{"v"})
	p.Values[0][0] = 3

	csvPath := filepath.Join(dir, "tables", "fits.csv")
	if err := p.Save(csvPath); err != nil {
		t.Fatal(err)
	}
	tb, err := ReadCSV(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := tb.Float("v")
	if v[0] != 3 {
		t.Fatalf("v = %v", v)
	}

	texPath := filepath.Join(dir, "fits.tex")
	if err := p.Save(texPath); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(texPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("\\toprule")) {
		t.Fatalf("tex file:\n%s", data)
	}
}
