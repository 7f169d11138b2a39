package casa

import (
	"fmt"
	"strings"
	"text/template"
)

// Markers printed by the rendered scripts and parsed from the CASA output.
const (
	timingMarker = "M33_TIMING"
	fieldsMarker = "M33_FIELDS"
)

var funcs = template.FuncMap{"py": pyString}

var cleanTestTemplate = template.Must(template.New("clean").Funcs(funcs).Parse(`import os
import json
import time

from imagerhelpers.imager_parallel_cube import PyParallelCubeSynthesisImager
from imagerhelpers.input_parameters import ImagerParameters

if not os.path.exists({{py .OutputDir}}):
    os.makedirs({{py .OutputDir}})

paramList = ImagerParameters(
{{- range .Params.Args}}
    {{.Name}}={{.Value}},
{{- end}}
)

imager = PyParallelCubeSynthesisImager(params=paramList)

imager.initializeImagers()
imager.initializeNormalizers()
imager.setWeighting()

imager.initializeDeconvolvers()
imager.initializeIterationControl()
imager.makePSF()
imager.makePB()

t0 = time.time()
imager.runMajorCycle()
print("{{.Marker}} major %.4f" % (time.time() - t0))

imager.hasConverged()
imager.updateMask()

while not imager.hasConverged():
    t0 = time.time()
    imager.runMinorCycle()
    print("{{.Marker}} minor %.4f" % (time.time() - t0))

    t0 = time.time()
    imager.runMajorCycle()
    print("{{.Marker}} major %.4f" % (time.time() - t0))

    imager.updateMask()

retrec = imager.getSummary()
imager.restoreImages()
imager.pbcorImages()

imager.concatImages(type='virtualcopy')
imager.deleteTools()


def _plain(o):
    if hasattr(o, 'tolist'):
        return o.tolist()
    return str(o)


with open({{py .SummaryPath}}, 'w') as handle:
    json.dump(retrec, handle, default=_plain)
`))

var lineImageTemplate = template.Must(template.New("line").Funcs(funcs).Parse(`from CASA_functions import set_imagermode, set_imagesize, set_cellsize

default("clean")
imagermode = set_imagermode({{py .Vis}}, {{py .Source}})
cellsize = set_cellsize({{py .Vis}}, {{.SPW}}, sample_factor=6.)
imagesize = set_imagesize({{py .Vis}}, {{.SPW}}, sample_factor=6.)

clean(vis={{py .Vis}},
      imagename={{py .ImageName}},
      field={{py .Field}}, spw={{py .SPWString}}, mode='channel', niter=0,
      imagermode=imagermode, cell=cellsize, imagesize=imagesize,
      start={{.Start}}, width={{.Width}}, nchan=1,
      weighting='natural', pbcor=False, minpb=0.1,
      phasecenter={{py .PhaseCenter}})
`))

var fieldsTemplate = template.Must(template.New("fields").Funcs(funcs).Parse(`import json

msmd.open({{py .Vis}})
names = list(msmd.fieldnames())
msmd.close()
print("{{.Marker}} " + json.dumps(names))
`))

type cleanScript struct {
	Params      ImagerParameters
	OutputDir   string
	SummaryPath string
	Marker      string
}

type lineScript struct {
	Vis         string
	Source      string
	Field       string
	SPW         int
	SPWString   string
	ImageName   string
	Start       int
	Width       int
	PhaseCenter string
}

type fieldsScript struct {
	Vis    string
	Marker string
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("casa: render %s: %w", t.Name(), err)
	}
	return b.String(), nil
}
