package fitsfile

import "errors"

var (
	// ErrFileExists is returned when an output file is already present.
	ErrFileExists = errors.New("fitsfile: file already exists")
	// ErrNoImage is returned when a file holds no image HDU with data.
	ErrNoImage = errors.New("fitsfile: no image data")
	// ErrKeyNotFound is returned when a header keyword is missing.
	ErrKeyNotFound = errors.New("fitsfile: keyword not found")
	// ErrNotFITS is returned when a file does not start with a FITS header.
	ErrNotFITS = errors.New("fitsfile: not a FITS file")
	// ErrShape is returned when data do not match the image axes.
	ErrShape = errors.New("fitsfile: data do not match image shape")
)
