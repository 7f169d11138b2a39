package config

import "path/filepath"

func (p Paths) resolve(dir, name string) string {
	if filepath.IsAbs(dir) {
		return filepath.Join(dir, name)
	}
	return filepath.Join(p.DataRoot, dir, name)
}

// FourteenBHI locates a VLA 14B-088 HI product.
func (p Paths) FourteenBHI(name string) string { return p.resolve(p.FourteenBHIDir, name) }

// FourteenBWithGBT locates a product of the GBT-feathered 14B-088 data.
func (p Paths) FourteenBWithGBT(name string) string { return p.resolve(p.FourteenBGBTDir, name) }

// IRAMCO21 locates an IRAM CO(2-1) product.
func (p Paths) IRAMCO21(name string) string { return p.resolve(p.IRAMCO21Dir, name) }

// IRAMCO21On14B locates CO(2-1) products regridded to the HI cube.
func (p Paths) IRAMCO21On14B(name string) string { return p.resolve(p.IRAMCO21On14BDir, name) }

// Paper1Figures locates a figure of the first paper.
func (p Paths) Paper1Figures(name string) string { return p.resolve(p.Paper1FiguresDir, name) }

// Paper1Tables locates a table of the first paper.
func (p Paths) Paper1Tables(name string) string { return p.resolve(p.Paper1TablesDir, name) }

// AllFigures locates an exploratory figure.
func (p Paths) AllFigures(name string) string { return p.resolve(p.AllFiguresDir, name) }

// CHIAnalysis locates a file shipped with the analysis scripts.
func (p Paths) CHIAnalysis(name string) string { return p.resolve(p.AnalysisScriptDir, name) }
