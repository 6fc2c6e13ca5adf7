package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	dryRun   bool
	showDiff bool
	limit    int
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithDryRun computes patch results without writing files or history.
func WithDryRun(v bool) Option {
	return func(a *application) {
		a.dryRun = v
	}
}

// WithDiff prints a diff for every changed file.
func WithDiff(v bool) Option {
	return func(a *application) {
		a.showDiff = v
	}
}

// WithLimit bounds the number of history entries shown.
func WithLimit(n int) Option {
	return func(a *application) {
		a.limit = n
	}
}
