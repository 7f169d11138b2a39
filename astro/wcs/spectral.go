package wcs

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/m33-lines/astro/fitsfile"
)

// Spectral is a linear spectral axis expressed in m/s.
type Spectral struct {
	Axis    int    // 1-based FITS axis number
	CType   string // as found in the header
	CRVAL   float64
	CDELT   float64
	CRPIX   float64
	Unit    string // native unit of CRVAL/CDELT
	RestFrq float64
	N       int
}

var velocityTypes = []string{"VRAD", "VELO", "VOPT", "FELO"}

// IsVelocity reports whether the native axis is already a velocity.
func (s *Spectral) IsVelocity() bool {
	for _, v := range velocityTypes {
		if strings.HasPrefix(s.CType, v) {
			return true
		}
	}
	return false
}

// SpectralFromHeader reads the first spectral axis found in h.
func SpectralFromHeader(h *fitsfile.Header) (*Spectral, error) {
	naxis, err := h.Int("NAXIS")
	if err != nil {
		return nil, fmt.Errorf("wcs: %w", err)
	}
	for i := 1; i <= naxis; i++ {
		ctype := strings.ToUpper(h.StringOr(fmt.Sprintf("CTYPE%d", i), ""))
		isFreq := strings.HasPrefix(ctype, "FREQ")
		isVel := false
		for _, v := range velocityTypes {
			if strings.HasPrefix(ctype, v) {
				isVel = true
			}
		}
		if !isFreq && !isVel {
			continue
		}
		s := &Spectral{
			Axis:    i,
			CType:   ctype,
			CRVAL:   h.FloatOr(fmt.Sprintf("CRVAL%d", i), 0),
			CDELT:   h.FloatOr(fmt.Sprintf("CDELT%d", i), 1),
			CRPIX:   h.FloatOr(fmt.Sprintf("CRPIX%d", i), 1),
			Unit:    h.StringOr(fmt.Sprintf("CUNIT%d", i), ""),
			RestFrq: h.FloatOr("RESTFRQ", h.FloatOr("RESTFREQ", 0)),
			N:       int(h.FloatOr(fmt.Sprintf("NAXIS%d", i), 0)),
		}
		if s.Unit == "" {
			if isFreq {
				s.Unit = "Hz"
			} else {
				s.Unit = "m/s"
			}
		}
		if isFreq && s.RestFrq == 0 {
			return nil, fmt.Errorf("wcs: frequency axis without RESTFRQ")
		}
		return s, nil
	}
	return nil, ErrNoSpectralAxis
}

func unitScale(unit string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "m/s", "m s-1", "m.s-1":
		return 1, nil
	case "km/s", "km s-1", "km.s-1":
		return 1000, nil
	case "hz":
		return 1, nil
	case "khz":
		return 1e3, nil
	case "mhz":
		return 1e6, nil
	case "ghz":
		return 1e9, nil
	}
	return 0, fmt.Errorf("wcs: unknown spectral unit %q", unit)
}

// Native returns the axis value of channel k in the native unit.
func (s *Spectral) Native(k int) float64 {
	return s.CRVAL + s.CDELT*(float64(k+1)-s.CRPIX)
}

// Velocity returns the velocity of channel k in m/s.
func (s *Spectral) Velocity(k int) float64 {
	scale, err := unitScale(s.Unit)
	if err != nil {
		return math.NaN()
	}
	v := s.Native(k) * scale
	if s.IsVelocity() {
		return v
	}
	return SpeedOfLight * (1 - v/s.RestFrq)
}

// Values returns the velocity (m/s) of every channel.
func (s *Spectral) Values() []float64 {
	out := make([]float64, s.N)
	for k := range out {
		out[k] = s.Velocity(k)
	}
	return out
}

// ChannelWidth returns the signed velocity step between channels in m/s.
func (s *Spectral) ChannelWidth() float64 {
	if s.N < 2 {
		scale, _ := unitScale(s.Unit)
		if s.IsVelocity() {
			return s.CDELT * scale
		}
		return -SpeedOfLight * s.CDELT * scale / s.RestFrq
	}
	return s.Velocity(1) - s.Velocity(0)
}

// CRVALInMetres returns CRVAL as m/s for velocity axes.
func (s *Spectral) CRVALInMetres() (float64, error) {
	if !s.IsVelocity() {
		return 0, fmt.Errorf("wcs: %s axis is not a velocity", s.CType)
	}
	scale, err := unitScale(s.Unit)
	if err != nil {
		return 0, err
	}
	return s.CRVAL * scale, nil
}

// ShiftCRVAL returns the CRVAL value, in the native unit, that moves the
// velocity zero point by -v0 (m/s).
func (s *Spectral) ShiftCRVAL(v0 float64) (float64, error) {
	if !s.IsVelocity() {
		return 0, fmt.Errorf("wcs: %s axis is not a velocity", s.CType)
	}
	scale, err := unitScale(s.Unit)
	if err != nil {
		return 0, err
	}
	return s.CRVAL - v0/scale, nil
}
