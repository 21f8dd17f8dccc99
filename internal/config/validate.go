package config

import "fmt"

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	if c.Library.Directory == "" {
		errs = append(errs, "library.directory: required")
	}

	modes := 0
	for _, on := range []bool{c.Import.Move, c.Import.Copy, c.Import.Link,
		c.Import.Hardlink, c.Import.Reflink} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		errs = append(errs, "import: move, copy, link, hardlink, and reflink are mutually exclusive")
	}
	if c.Import.DeleteOriginals && c.Import.Move {
		errs = append(errs, "import.delete_originals: redundant with move")
	}

	if c.Import.Resume && c.Import.Incremental {
		errs = append(errs, "import: resume and incremental are mutually exclusive")
	}

	if c.Import.QueueSize < 1 {
		errs = append(errs, fmt.Sprintf("import.queue_size: must be positive, got %d", c.Import.QueueSize))
	}

	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level: must be one of debug, info, warn, error; got %q", c.Log.Level))
	}

	return errs
}
