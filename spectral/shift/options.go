package shift

import "go.uber.org/zap"

// DefaultChunkSize is the number of spectra shifted between file flushes.
const DefaultChunkSize = 20000

// Position is a pixel position in a cube.
type Position struct {
	Y, X int
}

// Config defines how a cube is shifted.
type Config struct {
	V0            float64 // reference velocity
	V0Unit        string
	HasV0         bool
	Positions     []Position // nil shifts every finite pixel of the surface
	OutputPath    string     // empty skips saving
	ReturnSpectra bool
	ChunkSize     int
	Workers       int // 0 shifts serially
	Padded        bool
	Logger        *zap.Logger
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns a config that returns spectra and saves nothing.
func DefaultConfig() Config {
	return Config{
		ReturnSpectra: true,
		ChunkSize:     DefaultChunkSize,
	}
}

// WithV0 sets the velocity the spectra are aligned on.
func WithV0(v0 float64, unit string) Option {
	return func(cfg *Config) {
		cfg.V0 = v0
		cfg.V0Unit = unit
		cfg.HasV0 = true
	}
}

// WithPositions restricts shifting to the given pixels, processed in order.
func WithPositions(posns []Position) Option {
	return func(cfg *Config) {
		cfg.Positions = posns
	}
}

// WithOutput saves the shifted cube to path, which must not exist.
func WithOutput(path string) Option {
	return func(cfg *Config) {
		cfg.OutputPath = path
	}
}

// WithReturnSpectra controls whether shifted spectra are returned.
func WithReturnSpectra(ret bool) Option {
	return func(cfg *Config) {
		cfg.ReturnSpectra = ret
	}
}

// WithChunkSize sets the number of spectra per chunk.
func WithChunkSize(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.ChunkSize = n
		}
	}
}

// WithWorkers sets the number of goroutines shifting each chunk.
func WithWorkers(n int) Option {
	return func(cfg *Config) {
		if n >= 0 {
			cfg.Workers = n
		}
	}
}

// WithPadding selects the zero-padded power-of-two transform.
func WithPadding(padded bool) Option {
	return func(cfg *Config) {
		cfg.Padded = padded
	}
}

// WithLogger reports chunk progress to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = logger
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}
